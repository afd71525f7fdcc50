package llm

import "fmt"

// SchemaViolationError is returned when an inference response does not match the
// requested response shape, or breaks a stage's count contract.
type SchemaViolationError struct {
	Schema  string
	Message string
	Cause   error
}

func (e *SchemaViolationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("schema violation (%s): %s: %v", e.Schema, e.Message, e.Cause)
	}
	return fmt.Sprintf("schema violation (%s): %s", e.Schema, e.Message)
}

func (e *SchemaViolationError) Unwrap() error {
	return e.Cause
}

// APICallError is returned when the provider call itself fails.
type APICallError struct {
	Model   string
	Message string
	Cause   error
}

func (e *APICallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("LLM call to %s failed: %s: %v", e.Model, e.Message, e.Cause)
	}
	return fmt.Sprintf("LLM call to %s failed: %s", e.Model, e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}
