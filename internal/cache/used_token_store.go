package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/njugunanduati/medicine-dose-tracker/internal/services"
)

// UsedTokenStore records consumed reset-token ids until the token expires.
type UsedTokenStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewUsedTokenStore(client redis.Cmdable) *UsedTokenStore {
	return &UsedTokenStore{client: client, now: time.Now}
}

var _ services.UsedTokenStore = (*UsedTokenStore)(nil)

func usedTokenKey(tokenID string) string {
	return keyPrefix + "reset_token:used:" + tokenID
}

// Consume marks tokenID used with SET NX, so only one caller wins.
func (s *UsedTokenStore) Consume(ctx context.Context, tokenID string, until time.Time) (bool, error) {
	ttl := until.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := s.client.SetNX(ctx, usedTokenKey(tokenID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark reset token used: %w", err)
	}
	return ok, nil
}

func (s *UsedTokenStore) IsConsumed(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, usedTokenKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check reset token: %w", err)
	}
	return n > 0, nil
}
