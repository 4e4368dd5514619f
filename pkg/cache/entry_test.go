package cache

import (
	"testing"
	"time"
)

func TestCacheEntry_Expiry(t *testing.T) {
	tests := []struct {
		name        string
		offset      time.Duration
		wantExpired bool
		wantMinTTL  time.Duration
	}{
		{name: "stale for an hour", offset: -time.Hour, wantExpired: true},
		{name: "stale for a second", offset: -time.Second, wantExpired: true},
		{name: "fresh for an hour", offset: time.Hour, wantMinTTL: 59 * time.Minute},
		{name: "fresh for six hours", offset: 6 * time.Hour, wantMinTTL: 5 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Expires: time.Now().Add(tt.offset)}

			if got := entry.IsExpired(); got != tt.wantExpired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.wantExpired)
			}

			ttl := entry.TTL()
			if tt.wantExpired && ttl != 0 {
				t.Errorf("TTL() of stale entry = %v, want 0", ttl)
			}
			if !tt.wantExpired && (ttl < tt.wantMinTTL || ttl > tt.offset) {
				t.Errorf("TTL() = %v, want in [%v, %v]", ttl, tt.wantMinTTL, tt.offset)
			}
		})
	}
}

func TestNewEntry(t *testing.T) {
	body := []byte(`{"result":[{"id":85,"name":"Brand"}]}`)
	entry := NewEntry(body, 6*time.Hour)

	if string(entry.Data) != string(body) {
		t.Errorf("Data = %s, want %s", entry.Data, body)
	}
	if entry.CachedAt.IsZero() {
		t.Fatal("CachedAt not set")
	}
	if got := entry.Expires.Sub(entry.CachedAt); got != 6*time.Hour {
		t.Errorf("Expires - CachedAt = %v, want 6h", got)
	}
	if entry.IsExpired() {
		t.Error("new entry is already expired")
	}
}
