package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// AnonymousQuota tracks search usage for visitors with no durable identity,
// keyed by an opaque client token. Keys carry no TTL: the allowance has no
// reset period and survives until the client's token is discarded. Nothing
// synchronizes tokens across devices; a visitor with two browsers gets two
// allowances, and that limitation is accepted rather than papered over.
type AnonymousQuota struct {
	rdb *redis.Client
}

// NewAnonymousQuota creates the store over redis.
func NewAnonymousQuota(rdb *redis.Client) *AnonymousQuota {
	return &AnonymousQuota{rdb: rdb}
}

func anonKey(clientToken string) string {
	return "slanglab:anon:searches:" + clientToken
}

// Used returns how many searches the client token has consumed.
func (a *AnonymousQuota) Used(ctx context.Context, clientToken string) (int, error) {
	if clientToken == "" {
		return 0, fmt.Errorf("empty client token")
	}
	used, err := a.rdb.Get(ctx, anonKey(clientToken)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read anonymous quota: %w", err)
	}
	return used, nil
}

// Record consumes one search for the client token. Atomic on the redis side;
// called only after the search has actually run.
func (a *AnonymousQuota) Record(ctx context.Context, clientToken string) error {
	if clientToken == "" {
		return fmt.Errorf("empty client token")
	}
	if err := a.rdb.Incr(ctx, anonKey(clientToken)).Err(); err != nil {
		return fmt.Errorf("failed to record anonymous search: %w", err)
	}
	return nil
}
