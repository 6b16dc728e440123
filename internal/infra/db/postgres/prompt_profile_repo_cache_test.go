//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/repository"
)

func TestPromptProfileCacheDecorator(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	temp := 0.3
	profile := &model.PromptProfile{ID: "science-v1", SystemPrompt: "sys", UserPromptTemplate: "{{topic}}", Temperature: &temp}
	profileJSON, _ := json.Marshal(profile)

	t.Run("FindByID returns from cache on hit", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				if key != "prompt_profile:science-v1" {
					t.Errorf("unexpected key %q", key)
				}
				return string(profileJSON), nil
			},
		}
		innerCalled := false
		inner := &mockInnerProfileRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.PromptProfile, error) {
				innerCalled = true
				return nil, nil
			},
		}

		got, err := NewPromptProfileCacheDecorator(inner, mockRedis, time.Minute, &logger).FindByID(ctx, nil, "science-v1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if innerCalled {
			t.Error("inner repository should not be called on a cache hit")
		}
		if got.UserPromptTemplate != "{{topic}}" || got.Temperature == nil || *got.Temperature != 0.3 {
			t.Errorf("cached profile not decoded: %+v", got)
		}
	})

	t.Run("FindByID populates cache on miss", func(t *testing.T) {
		var setKey string
		var setTTL time.Duration
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", redis.Nil },
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				setKey, setTTL = key, expiration
				return nil
			},
		}
		inner := &mockInnerProfileRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.PromptProfile, error) {
				return profile, nil
			},
		}

		got, err := NewPromptProfileCacheDecorator(inner, mockRedis, 5*time.Minute, &logger).FindByID(ctx, nil, "science-v1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.ID != "science-v1" {
			t.Errorf("unexpected profile %+v", got)
		}
		if setKey != "prompt_profile:science-v1" || setTTL != 5*time.Minute {
			t.Errorf("cache write key=%q ttl=%s", setKey, setTTL)
		}
	})

	t.Run("FindByID falls through when redis is down", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", errors.New("connection refused") },
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				return errors.New("connection refused")
			},
		}
		inner := &mockInnerProfileRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.PromptProfile, error) {
				return profile, nil
			},
		}

		got, err := NewPromptProfileCacheDecorator(inner, mockRedis, time.Minute, &logger).FindByID(ctx, nil, "science-v1")
		if err != nil || got == nil {
			t.Fatalf("expected profile from store, got %v, %v", got, err)
		}
	})

	t.Run("FindByID does not cache not found", func(t *testing.T) {
		setCalled := false
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", redis.Nil },
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				setCalled = true
				return nil
			},
		}
		inner := &mockInnerProfileRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.PromptProfile, error) {
				return nil, domain.ErrNotFound
			},
		}

		_, err := NewPromptProfileCacheDecorator(inner, mockRedis, time.Minute, &logger).FindByID(ctx, nil, "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if setCalled {
			t.Error("a missing profile must not be cached")
		}
	})

	t.Run("Save invalidates the cache", func(t *testing.T) {
		var deleted []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deleted = append(deleted, keys...)
				return nil
			},
		}
		inner := &mockInnerProfileRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, p *model.PromptProfile) error { return nil },
		}

		if err := NewPromptProfileCacheDecorator(inner, mockRedis, time.Minute, &logger).Save(ctx, nil, profile); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(deleted) != 1 || deleted[0] != "prompt_profile:science-v1" {
			t.Fatalf("expected profile key invalidated, got %v", deleted)
		}
	})
}
