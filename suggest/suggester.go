// Package suggest is the request-orchestration layer in front of the suggester engines: it keeps
// one suggester per index, turns parameters into queries, runs them on a dedicated worker
// pool and feeds observations back into the engines.
package suggest

import (
	"context"

	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/query"
)

// Suggester is the engine capability bound to one index. Implementations must be safe for
// concurrent use, one instance serves every request against its index.
type Suggester interface {
	// Index returns the index id the suggester is bound to
	Index() string

	// CreateIndexIfNothing creates the backing storage, returning true only if this call created it
	CreateIndexIfNothing(ctx context.Context) (bool, error)

	// Query answers a suggest, popular words or famous keys query
	Query(ctx context.Context, q query.Query) (*index.Result, error)

	// IndexObservation learns from a search word or a document
	IndexObservation(ctx context.Context, o query.Observation) (*index.IndexResponse, error)

	SupportedFields(ctx context.Context) ([]string, error)
	AddSupportedField(ctx context.Context, field string) error
}

// Factory builds the suggester of an index id. It may do I/O and may fail.
type Factory func(ctx context.Context, indexID string) (Suggester, error)

// SettingsLookup reads per-index settings from the search engine's metadata
type SettingsLookup interface {
	// PrefixMatchWeight returns the prefix-match weight configured for an index or alias.
	// For an alias spanning several indices the largest weight wins. 0 means not configured.
	PrefixMatchWeight(ctx context.Context, idx string) (float64, error)
}
