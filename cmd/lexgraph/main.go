package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/siherrmann/lexgraph/helper"
	"github.com/urfave/cli/v2"
)

const (
	embedderHugot  = "hugot"
	embedderOpenAI = "openai"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lexgraph",
		Usage: "Hybrid vector and graph retrieval over legal documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file instead of .env",
			},
			&cli.StringFlag{
				Name:  "embedder",
				Usage: "Embedding backend (hugot, openai)",
				Value: embedderHugot,
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "OpenAI compatible embedding service URL, used with --embedder openai",
				Value: "http://localhost:11434/v1",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name, overrides LEXGRAPH_EMBEDDING_MODEL",
			},
			&cli.IntFlag{
				Name:  "embedding-dim",
				Usage: "Embedding dimension, overrides LEXGRAPH_EMBEDDING_DIM",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "query",
				Usage:     "Retrieve fused candidates for a query",
				ArgsUsage: "<query>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of candidates, defaults to LEXGRAPH_TOP_K",
					},
					&cli.StringFlag{
						Name:  "document",
						Usage: "Restrict retrieval to the document with this RID",
					},
					&cli.BoolFlag{
						Name:  "no-graph",
						Usage: "Skip graph expansion",
					},
					&cli.BoolFlag{
						Name:  "in-process-graph",
						Usage: "Expand the graph in process instead of with the recursive query",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print candidates as JSON",
					},
				},
			},
			{
				Name:   "ingest",
				Usage:  "Embed and store a parsed document from a JSON file",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the document JSON",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "detect-references",
						Usage: "Link article citations found in chunk text",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of passages per embedding call, defaults to EMBEDDING_BATCH_SIZE",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the retrieved sources with an Ollama model",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "ollama-host",
						Usage: "Ollama server URL",
						Value: "http://localhost:11434",
					},
					&cli.StringFlag{
						Name:     "model",
						Aliases:  []string{"m"},
						Usage:    "Ollama model name",
						Required: true,
					},
					&cli.Float64Flag{
						Name:  "temperature",
						Usage: "Sampling temperature",
						Value: 0.7,
					},
					&cli.IntFlag{
						Name:  "max-tokens",
						Usage: "Maximum number of generated tokens",
						Value: 2048,
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of candidates, defaults to LEXGRAPH_TOP_K",
					},
				},
			},
			{
				Name:  "documents",
				Usage: "Manage stored documents",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List stored documents, newest first",
						Action: listDocumentsCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "limit",
								Usage: "Maximum number of documents",
								Value: 50,
							},
						},
					},
					{
						Name:      "delete",
						Usage:     "Delete a document with its chunks and edges",
						ArgsUsage: "<rid>",
						Action:    deleteDocumentCommand,
					},
				},
			},
			{
				Name:   "index-type",
				Usage:  "Rebuild the vector index as hnsw or ivfflat",
				Action: indexTypeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "type",
						Aliases:  []string{"t"},
						Usage:    "Index type (hnsw, ivfflat)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "m",
						Usage: "HNSW max connections per layer",
						Value: 16,
					},
					&cli.IntFlag{
						Name:  "ef-construction",
						Usage: "HNSW candidate list size during build",
						Value: 64,
					},
					&cli.IntFlag{
						Name:  "lists",
						Usage: "IVFFlat number of lists",
						Value: 100,
					},
				},
			},
		},
	}
}

// setup loads the env file and installs the default logger.
func setup(c *cli.Context) error {
	if path := c.String("env-file"); path != "" {
		if err := helper.LoadEnvFile(path); err != nil {
			return err
		}
	} else if err := helper.LoadEnvFile(); err != nil {
		return err
	}

	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return err
	}

	logger := slog.New(helper.NewPrettyHandler(os.Stderr, helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: level},
	}))
	slog.SetDefault(logger)

	return nil
}

func parseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", value)
	}
}
