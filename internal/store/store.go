package store

import (
	"context"
	"errors"

	"sitechat-rag/internal/models"
)

// ErrNotFound is the normal miss outcome of FindBySequence, not a fault.
var ErrNotFound = errors.New("record not found")

const (
	DefaultLimit         = 5
	DefaultCandidatePool = 100
)

// SimilarityQuery is one approximate nearest-neighbor request, scoped to a
// site. CandidatePool trades recall for cost in drivers that support it.
type SimilarityQuery struct {
	Vector        []float32
	SiteID        string
	Limit         int
	CandidatePool int
}

// WithDefaults fills zero limits with the reference values.
func (q SimilarityQuery) WithDefaults() SimilarityQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.CandidatePool <= 0 {
		q.CandidatePool = DefaultCandidatePool
	}
	return q
}

// CorpusStore owns all persisted chunk and product state. Implementations
// must support concurrent reads and replace operations on independent
// (site, kind) keys without interference.
type CorpusStore interface {
	// ReplaceAll swaps every record stored under (siteID, kind) for recs.
	// The delete is sequenced before the insert; if the delete fails the
	// insert must not run.
	ReplaceAll(ctx context.Context, siteID string, kind models.SourceKind, recs []models.Record) (deleted, inserted int, err error)

	// FindBySequence resolves one document chunk by position. A miss
	// returns ErrNotFound.
	FindBySequence(ctx context.Context, siteID string, kind models.SourceKind, seq int) (models.Record, error)

	// VectorSearch returns the site's closest records, best match first.
	// No records for the site yields an empty result, not an error.
	VectorSearch(ctx context.Context, q SimilarityQuery) ([]models.Record, error)

	Close() error
}
