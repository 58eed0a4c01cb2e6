package cache

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()

	c, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	rc := c.(*RistrettoCache)
	t.Cleanup(rc.Close)
	return rc
}

func TestSetAndGet(t *testing.T) {
	c := newTestCache(t)

	if !c.Set("token", "handle", time.Minute) {
		t.Fatal("set rejected")
	}
	c.Wait()

	v, ok := c.Get("token")
	if !ok {
		t.Fatal("expected a hit")
	}
	if v.(string) != "handle" {
		t.Errorf("expected handle, got %v", v)
	}
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(t)

	if _, ok := c.Get("absent"); ok {
		t.Error("expected a miss")
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	c := newTestCache(t)

	c.Set("token", "handle", time.Minute)
	c.Wait()
	c.Delete("token")
	c.Wait()

	if _, ok := c.Get("token"); ok {
		t.Error("deleted key must miss")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)

	c.Set("token", "handle", 20*time.Millisecond)
	c.Wait()
	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get("token"); ok {
		t.Error("expired key must miss")
	}
}
