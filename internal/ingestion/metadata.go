package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jmin-pingu/ihcl/internal/fetch"
	"github.com/jmin-pingu/ihcl/internal/types"
)

// Metadata describes one resolved source.
type Metadata struct {
	Path       string           `json:"path"`
	SourceType types.SourceType `json:"source_type"`
	Timestamp  string           `json:"timestamp"`      // RFC3339 format
	Hash       string           `json:"hash"`           // SHA256 hex digest of the cleaned text
	Site       string           `json:"site,omitempty"` // Detected site family for web pages
	Chars      int              `json:"chars"`
}

// NewMetadata creates a new Metadata instance with current timestamp
func NewMetadata(path string, sourceType types.SourceType, content string) *Metadata {
	m := &Metadata{
		Path:       path,
		SourceType: sourceType,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Hash:       computeHash(content),
		Chars:      len(content),
	}
	if sourceType == types.SourceWebPage {
		m.Site = string(fetch.DetectSite(path))
	}
	return m
}

// computeHash computes SHA256 hash of content and returns hex string
func computeHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
