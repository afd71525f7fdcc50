// Package llm - invoker.go runs schema-checked structured calls against a Client.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jmin-pingu/ihcl/internal/schemas"
)

// Call describes one structured inference invocation.
type Call struct {
	// Name labels the stage (e.g. "clean", "tag") for logs and test clients.
	Name   string
	System string
	User   string
	// Schema is the embedded schema file the response must satisfy.
	Schema string
	Tier   ModelTier
}

// Invoker enforces response shapes on top of a Client. No retry is attempted:
// a response that fails its schema is returned as a *SchemaViolationError.
type Invoker struct {
	client Client
	logger *zap.Logger
}

// NewInvoker wraps client. A nil logger discards output.
func NewInvoker(client Client, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{client: client, logger: logger}
}

// InvokeJSON sends call and decodes the validated response into out.
func (i *Invoker) InvokeJSON(ctx context.Context, call Call, out any) error {
	schemaText, err := schemas.Load(call.Schema)
	if err != nil {
		return err
	}

	prompt := Prompt{
		Name:   call.Name,
		System: call.System,
		User:   BuildStructuredPrompt(call.User, schemaText),
	}

	start := time.Now()
	raw, err := i.client.GenerateJSON(ctx, prompt, call.Tier)
	if err != nil {
		i.logger.Warn("inference call failed",
			zap.String("stage", call.Name),
			zap.String("model", i.client.GetModel(call.Tier)),
			zap.Error(err))
		return err
	}
	i.logger.Debug("inference call completed",
		zap.String("stage", call.Name),
		zap.String("model", i.client.GetModel(call.Tier)),
		zap.Duration("elapsed", time.Since(start)))

	cleaned := CleanJSONBlock(raw)
	if !json.Valid([]byte(cleaned)) {
		return &SchemaViolationError{Schema: call.Schema, Message: "response is not valid JSON"}
	}

	if err := schemas.Validate(call.Schema, cleaned); err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			return &SchemaViolationError{Schema: call.Schema, Message: "response does not match schema", Cause: err}
		}
		return err
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return &SchemaViolationError{Schema: call.Schema, Message: "response could not be decoded", Cause: err}
	}
	return nil
}

// BuildStructuredPrompt appends the response-format instructions for schemaText to user.
func BuildStructuredPrompt(user, schemaText string) string {
	var sb strings.Builder

	sb.WriteString(strings.TrimSpace(user))
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this JSON Schema:\n")
	sb.WriteString(strings.TrimSpace(schemaText))
	sb.WriteString("\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Use exactly the field names in the schema.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n")

	return sb.String()
}
