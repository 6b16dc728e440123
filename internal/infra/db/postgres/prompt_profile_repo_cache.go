package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/repository"
	"lesson-pipeline/internal/infra/metrics"
	red "lesson-pipeline/internal/infra/redis"
)

var _ repository.PromptProfileRepository = (*promptProfileCacheDecorator)(nil)

// promptProfileCacheDecorator serves profile reads from Redis. Profiles are
// read once per job and change rarely.
type promptProfileCacheDecorator struct {
	inner repository.PromptProfileRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewPromptProfileCacheDecorator(inner repository.PromptProfileRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PromptProfileRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "PromptProfileCache").Logger()
	return &promptProfileCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func profileKey(id string) string { return fmt.Sprintf("prompt_profile:%s", id) }

func (d *promptProfileCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PromptProfile, error) {
	key := profileKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var p model.PromptProfile
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("prompt_profile", "hit")
			return &p, nil
		}
	} else if !red.IsNil(err) {
		d.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	metrics.IncCacheRequest("prompt_profile", "miss")
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return p, nil
}

// Save invalidates before writing so a concurrent reader cannot re-cache the old row for long.
func (d *promptProfileCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.PromptProfile) error {
	if err := d.cache.Del(ctx, profileKey(p.ID)); err != nil {
		d.log.Warn().Err(err).Str("profile_id", p.ID).Msg("cache invalidate failed")
	}
	return d.inner.Save(ctx, tx, p)
}
