package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alopez/store-backend/pkg/redis"
)

// WebhookIdempotencyScope namespaces payment provider event markers.
const WebhookIdempotencyScope = "payment-webhook"

const (
	markerProcessing = "processing"
	markerDone       = "done"
)

// IdempotencyGuard marks provider event ids as seen. A claim first holds a
// short-lived "processing" marker; Confirm upgrades it to "done" for the full
// TTL once the work has committed, so a crash mid-way only blocks retries
// until the processing marker expires.
type IdempotencyGuard struct {
	store         redis.IdempotencyStore
	ttl           time.Duration
	processingTTL time.Duration
	scope         string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl, processingTTL time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if processingTTL <= 0 {
		return nil, errors.New("processing ttl must be positive")
	}
	if ttl > 0 && processingTTL > ttl {
		processingTTL = ttl
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store:         store,
		ttl:           ttl,
		processingTTL: processingTTL,
		scope:         scope,
	}, nil
}

// CheckAndMark claims eventID and returns true when it was already claimed.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.key(eventID), markerProcessing, g.processingTTL)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Confirm records eventID as fully handled for the configured TTL.
func (g *IdempotencyGuard) Confirm(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	if err := g.store.Set(ctx, g.key(eventID), markerDone, g.ttl); err != nil {
		return fmt.Errorf("confirm idempotency key: %w", err)
	}
	return nil
}

// Delete releases the marker so the provider retry is processed again.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.key(eventID))
}

func (g *IdempotencyGuard) key(eventID string) string {
	return g.store.IdempotencyKey(g.scope, eventID)
}
