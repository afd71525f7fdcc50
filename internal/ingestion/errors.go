package ingestion

import (
	"fmt"

	"github.com/jmin-pingu/ihcl/internal/types"
)

// SourceError is returned when one source could not be fetched or parsed.
type SourceError struct {
	Path       string
	SourceType types.SourceType
	Message    string
	Cause      error
}

func (e *SourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("source %s (%s): %s: %v", e.Path, e.SourceType, e.Message, e.Cause)
	}
	return fmt.Sprintf("source %s (%s): %s", e.Path, e.SourceType, e.Message)
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}
