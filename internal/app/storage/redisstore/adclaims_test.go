package redisstore

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestAdClaimStoreIntegration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration test")
	}

	ctx := context.Background()
	store, err := Dial(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("dial redis: %v", err)
	}
	defer store.Close()

	userID := "it-user-" + time.Now().Format("150405.000000000")
	now := time.Now()

	for i := 0; i < 3; i++ {
		if err := store.RecordClaim(ctx, userID, now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("record claim %d: %v", i, err)
		}
	}

	count, err := store.ClaimsSince(ctx, userID, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("claims since: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 claims, got %d", count)
	}

	count, err = store.ClaimsSince(ctx, userID, now.Add(90*time.Second))
	if err != nil {
		t.Fatalf("claims since cutoff: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 claims after cutoff, got %d", count)
	}
}
