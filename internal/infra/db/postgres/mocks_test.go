//go:build !integration

package postgres

import (
	"context"
	"time"

	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/repository"
	red "lesson-pipeline/internal/infra/redis"
)

// mockInnerProfileRepo mocks the database repository the profile decorator wraps.
type mockInnerProfileRepo struct {
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.PromptProfile, error)
	SaveFunc     func(ctx context.Context, tx repository.Tx, p *model.PromptProfile) error
}

func (m *mockInnerProfileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PromptProfile, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerProfileRepo) Save(ctx context.Context, tx repository.Tx, p *model.PromptProfile) error {
	return m.SaveFunc(ctx, tx, p)
}

type mockRedisClient struct {
	GetFunc   func(ctx context.Context, key string) (string, error)
	SetFunc   func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc   func(ctx context.Context, keys ...string) error
	PingFunc  func(ctx context.Context) error
	CloseFunc func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Close() error                   { return m.CloseFunc() }
