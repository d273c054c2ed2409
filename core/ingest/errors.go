package ingest

import "errors"

var (
	// ErrInvalidDocument is returned before anything is embedded or stored.
	ErrInvalidDocument = errors.New("invalid document")

	ErrDocumentStoreRequired = errors.New("document store required")
	ErrChunkStoreRequired    = errors.New("chunk store required")
	ErrEdgeStoreRequired     = errors.New("edge store required")
	ErrEncoderRequired       = errors.New("passage encoder required")
)
