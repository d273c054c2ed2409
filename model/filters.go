package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// FilterKeyDocumentID restricts a search to one document by its RID.
const FilterKeyDocumentID = "documentId"

var ErrInvalidFilter = errors.New("invalid filter")

// Filters restrict vector search by metadata equality. Values are scalars
// (string, bool, integer or float).
type Filters map[string]any

// Validate rejects empty keys, non scalar values and a malformed documentId.
func (f Filters) Validate() error {
	for _, key := range f.Keys() {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("%w: empty key", ErrInvalidFilter)
		}
		value := f[key]
		if !isScalar(value) {
			return fmt.Errorf("%w: value of %q is %T, want scalar", ErrInvalidFilter, key, value)
		}
		if key == FilterKeyDocumentID {
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("%w: %s must be a string", ErrInvalidFilter, FilterKeyDocumentID)
			}
			if _, err := uuid.Parse(s); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidFilter, FilterKeyDocumentID, err)
			}
		}
	}
	return nil
}

// DocumentRIDs returns the document restriction, nil if there is none.
// Call Validate first.
func (f Filters) DocumentRIDs() []uuid.UUID {
	s, ok := f[FilterKeyDocumentID].(string)
	if !ok {
		return nil
	}
	rid, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return []uuid.UUID{rid}
}

// MetadataFilter returns every filter except documentId, to be matched
// against chunk metadata by containment.
func (f Filters) MetadataFilter() Metadata {
	m := Metadata{}
	for key, value := range f {
		if key == FilterKeyDocumentID {
			continue
		}
		m[key] = value
	}
	return m
}

// Keys returns the filter keys sorted.
func (f Filters) Keys() []string {
	keys := make([]string, 0, len(f))
	for key := range f {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func isScalar(value any) bool {
	switch value.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
