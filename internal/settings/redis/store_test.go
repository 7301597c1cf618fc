package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/lookout/internal/settings"
)

// unreachableClient points at a reserved TEST-NET address so any command that
// reaches the network fails quickly.
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	c := redis.NewClient(&redis.Options{
		Addr:        "192.0.2.1:6379",
		DialTimeout: 20 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestHashKey(t *testing.T) {
	if got := HashKey(""); got != "lookout:settings" {
		t.Errorf("HashKey(\"\") = %q", got)
	}
	if got := HashKey("lab"); got != "lookout:settings:lab" {
		t.Errorf("HashKey(lab) = %q", got)
	}
}

func TestStagedWritesAreVisible(t *testing.T) {
	ctx := context.Background()
	s := NewStore(unreachableClient(t), "")

	if err := s.SetValue(ctx, settings.KeySources, "[]"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Value(ctx, settings.KeySources)
	if err != nil || !ok || v != "[]" {
		t.Errorf("Value() = %q, %v, %v", v, ok, err)
	}

	if err := s.Remove(ctx, settings.KeySources); err != nil {
		t.Fatal(err)
	}
	ok, err = s.Contains(ctx, settings.KeySources)
	if err != nil || ok {
		t.Errorf("Contains() after Remove = %v, %v", ok, err)
	}
}

func TestSyncFailureIsReported(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s := NewStore(unreachableClient(t), "")
	_ = s.SetValue(ctx, settings.KeySelectedID, "abc")

	if err := s.Sync(ctx); !errors.Is(err, settings.ErrAccess) {
		t.Fatalf("Sync() = %v, want ErrAccess", err)
	}
	if s.Status() == nil {
		t.Error("Status() should report the failed sync")
	}
	// The staged write survives for a later retry.
	if v, ok, _ := s.Value(ctx, settings.KeySelectedID); !ok || v != "abc" {
		t.Errorf("staged value lost after failed sync: %q, %v", v, ok)
	}
}
