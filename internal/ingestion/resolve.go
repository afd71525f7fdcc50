// Package ingestion resolves context sources (files and URLs) into normalized plain text.
// Each source format has its own Parser, selected by the inferred SourceType.
package ingestion

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jmin-pingu/ihcl/internal/fetch"
	"github.com/jmin-pingu/ihcl/internal/types"
)

// Parser converts one source into plain text.
type Parser interface {
	Parse(ctx context.Context, path string) (string, error)
}

// TextFetcher reads a web page as text. *fetch.WebFetcher satisfies it.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Source is the result of resolving one path.
type Source struct {
	Type     types.SourceType
	Text     string
	Metadata *Metadata
}

var extensionTypes = map[string]types.SourceType{
	"txt":  types.SourcePlainText,
	"pdf":  types.SourcePDF,
	"docx": types.SourceWordDocument,
}

// InferType classifies path: http(s) URLs are web pages, supported extensions map
// to their format, anything else is unknown.
func InferType(path string) types.SourceType {
	if fetch.IsURL(path) {
		return types.SourceWebPage
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if sourceType, ok := extensionTypes[ext]; ok {
		return sourceType
	}
	return types.SourceUnknown
}

// Resolver dispatches each path to the parser for its inferred type.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	parsers map[types.SourceType]Parser
	logger  *zap.Logger
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithParser replaces the parser for one source type.
func WithParser(sourceType types.SourceType, p Parser) ResolverOption {
	return func(r *Resolver) { r.parsers[sourceType] = p }
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver builds a resolver whose web pages are read through web.
func NewResolver(web TextFetcher, options ...ResolverOption) *Resolver {
	text := PlainTextParser{}
	r := &Resolver{
		parsers: map[types.SourceType]Parser{
			types.SourcePlainText:    text,
			types.SourcePDF:          PDFParser{},
			types.SourceWordDocument: DocxParser{},
			types.SourceWebPage:      WebParser{Fetcher: web},
			types.SourceUnknown:      text,
		},
		logger: zap.NewNop(),
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Resolve classifies path, parses it and normalizes the text with CleanText.
// Failures are returned as *SourceError carrying the path.
func (r *Resolver) Resolve(ctx context.Context, path string) (*Source, error) {
	sourceType := InferType(path)
	if sourceType == types.SourceUnknown {
		r.logger.Debug("unrecognized source extension, parsing as plain text", zap.String("path", path))
	}

	parser, ok := r.parsers[sourceType]
	if !ok {
		return nil, &SourceError{Path: path, SourceType: sourceType, Message: "no parser registered"}
	}

	raw, err := parser.Parse(ctx, path)
	if err != nil {
		return nil, &SourceError{Path: path, SourceType: sourceType, Message: "failed to read source", Cause: err}
	}

	text := CleanText(raw)
	return &Source{
		Type:     sourceType,
		Text:     text,
		Metadata: NewMetadata(path, sourceType, text),
	}, nil
}
