package model

import (
	"encoding/json"
	"maps"
	"strconv"
)

// Metadata keys with a typed home in CitationMetadata.
const (
	MetadataKeyPageNumber       = "pageNumber"
	MetadataKeySectionTitle     = "sectionTitle"
	MetadataKeyArticleNumber    = "articleNumber"
	MetadataKeyDocumentTitle    = "documentTitle"
	MetadataKeyRelationshipType = "relationshipType"
)

// CitationMetadata is the open metadata bag of a candidate. The well-known
// citation fields are typed, everything else travels in Extra untouched.
type CitationMetadata struct {
	PageNumber       *int           `json:"pageNumber,omitempty"`
	SectionTitle     string         `json:"sectionTitle,omitempty"`
	ArticleNumber    string         `json:"articleNumber,omitempty"`
	DocumentTitle    string         `json:"documentTitle,omitempty"`
	RelationshipType string         `json:"relationshipType,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// NewCitationMetadata splits a stored metadata map into typed fields and Extra.
func NewCitationMetadata(m Metadata) CitationMetadata {
	c := CitationMetadata{}
	for key, value := range m {
		switch key {
		case MetadataKeyPageNumber:
			if page, ok := toInt(value); ok {
				c.PageNumber = &page
				continue
			}
		case MetadataKeySectionTitle:
			if s, ok := value.(string); ok {
				c.SectionTitle = s
				continue
			}
		case MetadataKeyArticleNumber:
			if s, ok := toString(value); ok {
				c.ArticleNumber = s
				continue
			}
		case MetadataKeyDocumentTitle:
			if s, ok := value.(string); ok {
				c.DocumentTitle = s
				continue
			}
		case MetadataKeyRelationshipType:
			if s, ok := value.(string); ok {
				c.RelationshipType = s
				continue
			}
		}
		if c.Extra == nil {
			c.Extra = map[string]any{}
		}
		c.Extra[key] = value
	}
	return c
}

// ToMetadata flattens the citation fields back into a storable map.
func (c CitationMetadata) ToMetadata() Metadata {
	m := Metadata{}
	maps.Copy(m, c.Extra)
	if c.PageNumber != nil {
		m[MetadataKeyPageNumber] = *c.PageNumber
	}
	if c.SectionTitle != "" {
		m[MetadataKeySectionTitle] = c.SectionTitle
	}
	if c.ArticleNumber != "" {
		m[MetadataKeyArticleNumber] = c.ArticleNumber
	}
	if c.DocumentTitle != "" {
		m[MetadataKeyDocumentTitle] = c.DocumentTitle
	}
	if c.RelationshipType != "" {
		m[MetadataKeyRelationshipType] = c.RelationshipType
	}
	return m
}

func (c CitationMetadata) Copy() CitationMetadata {
	cp := c
	if c.PageNumber != nil {
		page := *c.PageNumber
		cp.PageNumber = &page
	}
	if c.Extra != nil {
		cp.Extra = maps.Clone(c.Extra)
	}
	return cp
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(v)
		return i, err == nil
	}
	return 0, false
}

func toString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	}
	return "", false
}
