// Package redisstore implements claim-history storage on Redis, used when the
// ad reward cap must be shared across instances.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yigicoin/platform/internal/app/storage"
)

// claimTTL bounds key growth. Caps look back at most 24h, so anything older
// is dead weight.
const claimTTL = 48 * time.Hour

// AdClaimStore keeps per-user claim timestamps in a sorted set scored by
// claim time.
type AdClaimStore struct {
	client *redis.Client
}

var _ storage.AdClaimStore = (*AdClaimStore)(nil)

// New creates an AdClaimStore on an existing client.
func New(client *redis.Client) *AdClaimStore {
	return &AdClaimStore{client: client}
}

// Dial connects to addr and returns a store over the new client.
func Dial(ctx context.Context, addr, password string, db int) (*AdClaimStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(client), nil
}

func claimKey(userID string) string {
	return "adclaims:" + userID
}

func (s *AdClaimStore) RecordClaim(ctx context.Context, userID string, at time.Time) error {
	key := claimKey(userID)
	score := float64(at.UnixNano())

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, &redis.Z{Score: score, Member: strconv.FormatInt(at.UnixNano(), 10)})
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(at.Add(-claimTTL).UnixNano(), 10))
	pipe.Expire(ctx, key, claimTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *AdClaimStore) ClaimsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	count, err := s.client.ZCount(ctx, claimKey(userID), strconv.FormatInt(since.UnixNano(), 10), "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// Close releases the underlying client.
func (s *AdClaimStore) Close() error {
	return s.client.Close()
}
