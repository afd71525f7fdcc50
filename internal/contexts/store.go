// Package contexts builds context collections from (description, path) declarations.
// Sources are resolved under a bounded worker pool and memoized per Store.
package contexts

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jmin-pingu/ihcl/internal/ingestion"
	"github.com/jmin-pingu/ihcl/internal/types"
)

// DefaultConcurrency bounds how many sources are resolved at once.
const DefaultConcurrency = 5

// Policy selects how a failed source is handled.
type Policy string

const (
	// PolicyIsolate records a failed source as a record with nil content and unknown type.
	PolicyIsolate Policy = "isolate"
	// PolicyFail aborts the build with the first source error.
	PolicyFail Policy = "fail"
)

// Resolver turns one path into text. *ingestion.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, path string) (*ingestion.Source, error)
}

// Store owns record construction and the memo of resolved entries.
// The memo lives as long as the Store; failed resolutions are not memoized.
type Store struct {
	resolver    Resolver
	concurrency int
	policy      Policy
	logger      *zap.Logger

	mu       sync.RWMutex
	memo     map[types.Entry]types.ContextRecord
	inflight singleflight.Group
}

// Option customises a Store.
type Option func(*Store)

// WithConcurrency sets the worker pool size; values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithPolicy sets the failure policy.
func WithPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store resolving sources through resolver.
func NewStore(resolver Resolver, opts ...Option) *Store {
	s := &Store{
		resolver:    resolver,
		concurrency: DefaultConcurrency,
		policy:      PolicyIsolate,
		logger:      zap.NewNop(),
		memo:        make(map[types.Entry]types.ContextRecord),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Build returns one record per entry, in entry order. Entries are validated
// before any source is fetched. Under PolicyIsolate a failing source yields a
// record with nil content; under PolicyFail the first *ingestion.SourceError is returned.
func (s *Store) Build(ctx context.Context, entries []types.Entry) (types.ContextCollection, error) {
	if err := ValidateEntries(entries); err != nil {
		return nil, err
	}

	records := make(types.ContextCollection, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, entry := range entries {
		g.Go(func() error {
			record, err := s.record(gctx, entry)
			if err != nil {
				if s.policy == PolicyFail {
					return err
				}
				s.logger.Warn("context source failed, continuing without it",
					zap.String("description", entry.Description),
					zap.String("path", entry.Path),
					zap.Error(err))
				record = failedRecord(entry)
			}
			records[i] = record
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// record returns the memoized record for entry, resolving it once across
// concurrent builds. The shared lookup runs detached from any one caller's
// cancellation; each caller stops waiting when its own ctx is done.
func (s *Store) record(ctx context.Context, entry types.Entry) (types.ContextRecord, error) {
	if err := ctx.Err(); err != nil {
		return types.ContextRecord{}, err
	}
	if cached, ok := s.cached(entry); ok {
		return cached.Clone(), nil
	}

	lookup := context.WithoutCancel(ctx)
	key := fmt.Sprintf("%s\x00%s", entry.Description, entry.Path)
	ch := s.inflight.DoChan(key, func() (any, error) {
		if cached, ok := s.cached(entry); ok {
			return cached, nil
		}
		return s.resolve(lookup, entry)
	})

	select {
	case <-ctx.Done():
		return types.ContextRecord{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return types.ContextRecord{}, res.Err
		}
		return res.Val.(types.ContextRecord).Clone(), nil
	}
}

func (s *Store) cached(entry types.Entry) (types.ContextRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.memo[entry]
	return record, ok
}

func (s *Store) resolve(ctx context.Context, entry types.Entry) (types.ContextRecord, error) {
	source, err := s.resolver.Resolve(ctx, entry.Path)
	if err != nil {
		return types.ContextRecord{}, err
	}

	record := types.NewContextRecord(entry.Description, entry.Path, source.Type, source.Text)
	if md := source.Metadata; md != nil {
		record.SourceHash = md.Hash
		record.Site = md.Site
	}
	s.mu.Lock()
	s.memo[entry] = record
	s.mu.Unlock()

	s.logger.Debug("context source resolved",
		zap.String("description", entry.Description),
		zap.String("path", entry.Path),
		zap.String("source_type", string(source.Type)),
		zap.String("site", record.Site),
		zap.Int("chars", len(source.Text)))
	return record, nil
}

func failedRecord(entry types.Entry) types.ContextRecord {
	return types.ContextRecord{
		Description: entry.Description,
		SourceType:  types.SourceUnknown,
		Path:        entry.Path,
		Status:      types.StatusRaw,
	}
}
