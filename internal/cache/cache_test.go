package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	// Create a mini Redis server for testing
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cache, err := NewCache(mr.Host(), mr.Server().Addr().Port, "", 0, time.Minute)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create cache: %v", err)
	}

	return cache, mr
}

func TestNewCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	if err := cache.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewCacheUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	host, port := mr.Host(), mr.Server().Addr().Port
	mr.Close()

	if _, err := NewCache(host, port, "", 0, time.Minute); err == nil {
		t.Error("Expected error connecting to a stopped server")
	}
}

func TestCache_LanguageOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	_, ok, err := cache.GetLanguageID(ctx, "en")
	if err != nil {
		t.Fatalf("GetLanguageID failed: %v", err)
	}
	if ok {
		t.Fatal("Expected cache miss")
	}

	if err := cache.SetLanguageID(ctx, "EN", 7); err != nil {
		t.Fatalf("SetLanguageID failed: %v", err)
	}

	// Lookup is case-insensitive
	id, ok, err := cache.GetLanguageID(ctx, " en ")
	if err != nil {
		t.Fatalf("GetLanguageID failed: %v", err)
	}
	if !ok || id != 7 {
		t.Errorf("Expected cached id 7, got %d (hit=%v)", id, ok)
	}

	// Entries expire after the TTL
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := cache.GetLanguageID(ctx, "en"); ok {
		t.Error("Expected entry to expire")
	}
}

func TestCache_RateLimit(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	key := "login:a@b.com"

	for i := 0; i < 3; i++ {
		allowed, err := cache.CheckRateLimit(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatalf("CheckRateLimit failed: %v", err)
		}
		if !allowed {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}

	allowed, err := cache.CheckRateLimit(ctx, key, 3, time.Minute)
	if err != nil {
		t.Fatalf("CheckRateLimit failed: %v", err)
	}
	if allowed {
		t.Error("Fourth request should be limited")
	}

	// Window expiry resets the counter
	mr.FastForward(2 * time.Minute)
	allowed, _ = cache.CheckRateLimit(ctx, key, 3, time.Minute)
	if !allowed {
		t.Error("Request after window should be allowed")
	}

	// Clearing resets as well
	for i := 0; i < 5; i++ {
		cache.CheckRateLimit(ctx, key, 3, time.Minute)
	}
	if err := cache.ClearRateLimit(ctx, key); err != nil {
		t.Fatalf("ClearRateLimit failed: %v", err)
	}
	allowed, _ = cache.CheckRateLimit(ctx, key, 3, time.Minute)
	if !allowed {
		t.Error("Request after clear should be allowed")
	}
}

func BenchmarkCache_GetLanguageID(b *testing.B) {
	mr, _ := miniredis.Run()
	defer mr.Close()

	cache, _ := NewCache(mr.Host(), mr.Server().Addr().Port, "", 0, time.Minute)
	defer cache.Close()

	ctx := context.Background()
	cache.SetLanguageID(ctx, "en", 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.GetLanguageID(ctx, "en")
	}
}
