// Package store persists duplicate scan runs and their ranked matches.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-dedupe/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	OwnerID string          `json:"owner_id,omitempty"`
	Status  model.RunStatus `json:"status,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// limit returns the page size, defaulting to 100.
func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}

// Store defines the persistence interface for scan results.
type Store interface {
	// SaveRun writes the run summary and its matches atomically. Saving the
	// same run again replaces the summary and upserts matches by pair.
	SaveRun(ctx context.Context, run model.Run, matches []model.Match) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	// ListMatches returns the matches of a run in rank order.
	ListMatches(ctx context.Context, runID string) ([]model.Match, error)

	Migrate(ctx context.Context) error
	Close() error
}
