package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"engagement_backend/platform/logger"
)

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), logger.New("development"), "op", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestWithRetryWrapsLastError(t *testing.T) {
	boom := errors.New("boom")
	err := WithRetry(context.Background(), logger.New("development"), "connect", 2, time.Millisecond, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := WithRetry(ctx, logger.New("development"), "op", 5, time.Millisecond, func() error { calls++; return nil })
	if !errors.Is(err, context.Canceled) || calls != 0 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRedisOptionsInsecureTLS(t *testing.T) {
	opt, err := RedisOptions("redis://localhost:6379/2", true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opt.DB != 2 || opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatalf("unexpected options: db=%d tls=%v", opt.DB, opt.TLSConfig)
	}
	if _, err := RedisOptions("", false); err == nil {
		t.Fatal("expected error for empty url")
	}
}
