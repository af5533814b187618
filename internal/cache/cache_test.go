package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/2", false},
		{"wrong-scheme", "http://localhost:6379", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := New(ctx, "redis://localhost:59999"); err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}

func TestPreviewKey(t *testing.T) {
	a := PreviewKey("html", []byte("<p>1. Soal</p>"))
	b := PreviewKey("html", []byte("<p>1. Soal</p>"))
	c := PreviewKey("xlsx", []byte("<p>1. Soal</p>"))
	if a != b {
		t.Fatalf("key not deterministic")
	}
	if a == c {
		t.Fatalf("kind not part of the key")
	}
	if !strings.HasPrefix(a, previewKeyPrefix) || len(a) != len(previewKeyPrefix)+64 {
		t.Fatalf("unexpected key %q", a)
	}
}

func TestNoopPreviewCache(t *testing.T) {
	var store PreviewStore = NoopPreviewCache{}
	if err := store.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, err := store.Get(context.Background(), "k"); ok || err != nil {
		t.Fatalf("noop cache returned ok=%v err=%v", ok, err)
	}
}

func TestRedisPreviewCacheIntegration(t *testing.T) {
	url := os.Getenv("CBTIMPORT_REDIS_URL")
	if url == "" {
		t.Skip("set CBTIMPORT_REDIS_URL to run redis integration test")
	}
	ctx := context.Background()
	c, err := New(ctx, url)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	store := NewPreviewCache(c, time.Minute)
	key := PreviewKey("html", []byte(time.Now().String()))
	if _, ok, err := store.Get(ctx, key); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := store.Set(ctx, key, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := store.Get(ctx, key)
	if err != nil || !ok || string(got) != `{"ok":true}` {
		t.Fatalf("unexpected cached value %q ok=%v err=%v", got, ok, err)
	}
}

func TestRedisRateLimiterIntegration(t *testing.T) {
	url := os.Getenv("CBTIMPORT_REDIS_URL")
	if url == "" {
		t.Skip("set CBTIMPORT_REDIS_URL to run redis integration test")
	}
	ctx := context.Background()
	c, err := New(ctx, url)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	l := NewRateLimiter(c, 2, time.Minute)
	key := "itest|" + time.Now().String()
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, key)
		if err != nil || !ok {
			t.Fatalf("request %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, err := l.Allow(ctx, key); ok || err != nil {
		t.Fatalf("third request should be blocked, ok=%v err=%v", ok, err)
	}
}
