// Package dlq implements C11: the dead-letter queue. Entries are never
// silently discarded — add_failed_item always appends, get_unresolved
// always returns the full backlog, and mark_resolved only flips a flag.
package dlq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketpipe/ingestor/internal/persistence"
)

// Queue is a thin façade over persistence.DLQRepo that serialises the
// failure context blob before handing it to the repository.
type Queue struct {
	repo persistence.DLQRepo
}

func New(repo persistence.DLQRepo) *Queue {
	return &Queue{repo: repo}
}

// Add appends a failed item. context, if non-nil, is marshalled to
// JSON; a marshal failure degrades to a nil context rather than losing
// the entry entirely.
func (q *Queue) Add(ctx context.Context, symbol, stage string, cause error, entryContext any) (int64, error) {
	var blob []byte
	if entryContext != nil {
		b, err := json.Marshal(entryContext)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Str("stage", stage).Msg("failed to marshal dlq context")
		} else {
			blob = b
		}
	}
	return q.repo.AddFailedItem(ctx, persistence.DLQItem{
		Symbol:       symbol,
		Stage:        stage,
		ErrorMessage: cause.Error(),
		Context:      blob,
		CreatedAt:    time.Now(),
	})
}

func (q *Queue) Unresolved(ctx context.Context) ([]persistence.DLQItem, error) {
	return q.repo.GetUnresolved(ctx)
}

func (q *Queue) Resolve(ctx context.Context, id int64) error {
	return q.repo.MarkResolved(ctx, id)
}

// Size reports the current unresolved backlog, for metrics gauge
// updates and operator visibility.
func (q *Queue) Size(ctx context.Context) (int, error) {
	items, err := q.repo.GetUnresolved(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}
