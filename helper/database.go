package helper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// DatabaseConfiguration holds the connection settings for the Postgres
// instance backing the vector index and the chunk graph.
type DatabaseConfiguration struct {
	Host          string
	Port          string
	Database      string
	Username      string
	Password      string
	Schema        string
	SSLMode       string
	WithTableDrop bool
}

// Database bundles the connection pool with a named logger.
type Database struct {
	Name     string
	Logger   *slog.Logger
	Instance *sql.DB
}

// LoadEnvFile loads environment variables from the given dotenv files.
// Without arguments it loads .env from the working directory; a missing
// default file is not an error.
func LoadEnvFile(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err != nil && len(filenames) == 0 && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return NewError("load env file", err)
	}
	return nil
}

// NewDatabaseConfiguration reads the LEXGRAPH_DB_* environment variables.
// Host, port, database, username and password are required.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	if err := LoadEnvFile(); err != nil {
		return nil, err
	}

	config := &DatabaseConfiguration{
		Host:     os.Getenv("LEXGRAPH_DB_HOST"),
		Port:     os.Getenv("LEXGRAPH_DB_PORT"),
		Database: os.Getenv("LEXGRAPH_DB_DATABASE"),
		Username: os.Getenv("LEXGRAPH_DB_USERNAME"),
		Password: os.Getenv("LEXGRAPH_DB_PASSWORD"),
		Schema:   envOrDefault("LEXGRAPH_DB_SCHEMA", "public"),
		SSLMode:  envOrDefault("LEXGRAPH_DB_SSLMODE", "disable"),
	}

	if drop := os.Getenv("LEXGRAPH_DB_WITH_TABLE_DROP"); drop != "" {
		withDrop, err := strconv.ParseBool(drop)
		if err != nil {
			return nil, NewError("parse LEXGRAPH_DB_WITH_TABLE_DROP", err)
		}
		config.WithTableDrop = withDrop
	}

	var missing []string
	for key, value := range map[string]string{
		"LEXGRAPH_DB_HOST":     config.Host,
		"LEXGRAPH_DB_PORT":     config.Port,
		"LEXGRAPH_DB_DATABASE": config.Database,
		"LEXGRAPH_DB_USERNAME": config.Username,
		"LEXGRAPH_DB_PASSWORD": config.Password,
	} {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, NewError("database configuration", fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", ")))
	}

	return config, nil
}

// ConnectionString returns the lib/pq key/value DSN for the configuration.
func (c *DatabaseConfiguration) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode, c.Schema,
	)
}

// NewDatabase opens and pings a connection pool. When WithTableDrop is set
// all lexgraph tables are dropped so the handlers recreate them.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) (*Database, error) {
	if config == nil {
		return nil, NewError("database configuration", fmt.Errorf("configuration is nil"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	instance, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, NewError("open database", err)
	}
	instance.SetMaxOpenConns(25)
	instance.SetMaxIdleConns(5)
	instance.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := instance.PingContext(ctx); err != nil {
		_ = instance.Close()
		return nil, NewError("ping database", err)
	}

	db := &Database{
		Name:     name,
		Logger:   logger.With("database", name),
		Instance: instance,
	}

	if config.WithTableDrop {
		if err := db.DropTables(ctx); err != nil {
			_ = instance.Close()
			return nil, err
		}
	}

	db.Logger.Info("Connected to database", slog.String("host", config.Host), slog.String("port", config.Port))

	return db, nil
}

// DropTables removes the lexgraph tables in dependency order.
func (d *Database) DropTables(ctx context.Context) error {
	_, err := d.Instance.ExecContext(ctx, `DROP TABLE IF EXISTS edges, chunks, documents CASCADE;`)
	if err != nil {
		return NewError("drop tables", err)
	}
	d.Logger.Warn("Dropped tables edges, chunks, documents")
	return nil
}

func (d *Database) Close() error {
	if d == nil || d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
