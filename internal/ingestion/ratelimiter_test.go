package ingestion

import (
	"testing"
	"time"

	"github.com/mirraman/logpipe/pkg/model"
)

func TestCheckRateWithinCapacity(t *testing.T) {
	rl := NewRateLimiter()
	rl.UpdateQuota(model.QuotaConfig{AppName: "checkout", LogsPerSecond: 100})

	if err := rl.CheckRate("checkout", 50); err != nil {
		t.Fatalf("CheckRate: %v", err)
	}
}

func TestCheckRateRejectsOverCapacity(t *testing.T) {
	rl := NewRateLimiter()
	rl.UpdateQuota(model.QuotaConfig{AppName: "checkout", LogsPerSecond: 10})

	if err := rl.CheckRate("checkout", 11); err == nil {
		t.Fatal("expected rate limit error, got nil")
	}
}

func TestCheckRateRejectDoesNotConsumeTokens(t *testing.T) {
	rl := NewRateLimiter()
	rl.UpdateQuota(model.QuotaConfig{AppName: "checkout", LogsPerSecond: 10})

	if err := rl.CheckRate("checkout", 11); err == nil {
		t.Fatal("expected first request to be rejected")
	}
	// The bucket should still be full (10 tokens), so a follow-up request
	// for exactly the capacity must succeed.
	if err := rl.CheckRate("checkout", 10); err != nil {
		t.Fatalf("expected bucket to be untouched by the rejected request: %v", err)
	}
}

func TestCheckRateDefaultLimit(t *testing.T) {
	rl := NewRateLimiter()
	if err := rl.CheckRate("unknown-app", defaultLogsPerSecond); err != nil {
		t.Fatalf("expected default quota of %d to admit request: %v", defaultLogsPerSecond, err)
	}
}

func TestCheckRateRefillsOverTime(t *testing.T) {
	rl := NewRateLimiter()
	rl.UpdateQuota(model.QuotaConfig{AppName: "checkout", LogsPerSecond: 10})

	if err := rl.CheckRate("checkout", 10); err != nil {
		t.Fatalf("first request should drain the bucket: %v", err)
	}
	if err := rl.CheckRate("checkout", 1); err == nil {
		t.Fatal("expected empty bucket to reject immediately")
	}

	// Manually age the bucket's last-update timestamp to simulate elapsed
	// time rather than sleeping in the test.
	rl.tokensMu.Lock()
	state := rl.tokens["checkout"]
	state.updatedAt = state.updatedAt.Add(-1 * time.Second)
	rl.tokens["checkout"] = state
	rl.tokensMu.Unlock()

	if err := rl.CheckRate("checkout", 10); err != nil {
		t.Fatalf("expected bucket to fully refill after 1s: %v", err)
	}
}
