// Package checkpoint implements C10: save/load of the last completed
// stage per workflow, backed by Postgres with a Redis cache-aside fast
// path for resume checks. The optional-Redis pattern is grounded on the
// teacher's data/cache.Cache adapter (Postgres stays the system of
// record; Redis is a best-effort accelerator that is never required).
package checkpoint

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/marketpipe/ingestor/internal/persistence"
)

const cacheTTL = 10 * time.Minute

// Store is C10's checkpoint store.
type Store struct {
	backing persistence.CheckpointStore
	cache   *redis.Client
}

// New wraps backing with an optional Redis fast path. cache may be nil,
// in which case Store degrades to Postgres-only reads and writes.
func New(backing persistence.CheckpointStore, cache *redis.Client) *Store {
	return &Store{backing: backing, cache: cache}
}

func cacheKey(workflowID string) string {
	return "checkpoint:" + workflowID
}

// Save overwrites the newest checkpoint for the workflow in Postgres,
// then refreshes the Redis fast path. State blobs are opaque to the
// store.
func (s *Store) Save(ctx context.Context, workflowID, stage string, state []byte) error {
	if err := s.backing.Save(ctx, workflowID, stage, state); err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}

	blob, err := json.Marshal(persistence.Checkpoint{
		WorkflowID: workflowID, Stage: stage, State: state, Timestamp: time.Now(),
	})
	if err != nil {
		log.Warn().Err(err).Str("workflow_id", workflowID).Msg("failed to marshal checkpoint for cache")
		return nil
	}
	if err := s.cache.Set(ctx, cacheKey(workflowID), blob, cacheTTL).Err(); err != nil {
		log.Warn().Err(err).Str("workflow_id", workflowID).Msg("checkpoint cache write failed, postgres remains authoritative")
	}
	return nil
}

// Load returns the newest checkpoint for workflowID, or nil if none
// exists. The Redis fast path is consulted first; a miss or any cache
// error falls through to Postgres and repopulates the cache.
func (s *Store) Load(ctx context.Context, workflowID string) (*persistence.Checkpoint, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey(workflowID)).Bytes(); err == nil {
			var cp persistence.Checkpoint
			if err := json.Unmarshal(raw, &cp); err == nil {
				return &cp, nil
			}
		}
	}

	cp, err := s.backing.Load(ctx, workflowID)
	if err != nil || cp == nil || s.cache == nil {
		return cp, err
	}

	if blob, merr := json.Marshal(cp); merr == nil {
		if err := s.cache.Set(ctx, cacheKey(workflowID), blob, cacheTTL).Err(); err != nil {
			log.Warn().Err(err).Str("workflow_id", workflowID).Msg("checkpoint cache refill failed")
		}
	}
	return cp, nil
}
