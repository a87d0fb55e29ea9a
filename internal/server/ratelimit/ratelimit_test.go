package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frozenLimiter(cfg *Config) (*Limiter, *time.Time) {
	l := NewLimiter(cfg)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	l, _ := frozenLimiter(&Config{Enabled: true, DefaultRate: 1, DefaultBurst: 3})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		allowed, info := l.Allow("10.0.0.1", "/v1/brands", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}

	allowed, info := l.Allow("10.0.0.1", "/v1/brands", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.InDelta(t, time.Second.Seconds(), info.RetryAfter.Seconds(), 0.01)
}

func TestLimiter_Refill(t *testing.T) {
	l, now := frozenLimiter(&Config{Enabled: true, DefaultRate: 2, DefaultBurst: 1})
	defer l.Stop()

	allowed, _ := l.Allow("c", "/x", "GET")
	require.True(t, allowed)
	allowed, _ = l.Allow("c", "/x", "GET")
	require.False(t, allowed)

	*now = now.Add(500 * time.Millisecond)
	allowed, _ = l.Allow("c", "/x", "GET")
	assert.True(t, allowed)
}

func TestLimiter_DeniedRequestDoesNotConsume(t *testing.T) {
	l, now := frozenLimiter(&Config{Enabled: true, DefaultRate: 1, DefaultBurst: 1})
	defer l.Stop()

	allowed, _ := l.Allow("c", "/x", "GET")
	require.True(t, allowed)
	for i := 0; i < 5; i++ {
		allowed, _ = l.Allow("c", "/x", "GET")
		require.False(t, allowed)
	}

	*now = now.Add(time.Second)
	allowed, _ = l.Allow("c", "/x", "GET")
	assert.True(t, allowed)
}

func TestLimiter_ClientsAndEndpointsAreIndependent(t *testing.T) {
	l, _ := frozenLimiter(&Config{
		Enabled:      true,
		DefaultRate:  1,
		DefaultBurst: 1,
		EndpointConfigs: []EndpointConfig{
			{Path: "/x", Method: "GET", Rate: 1, Burst: 1},
			{Path: "/y", Method: "GET", Rate: 1, Burst: 1},
		},
	})
	defer l.Stop()

	allowed, _ := l.Allow("a", "/x", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("b", "/x", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("a", "/y", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("a", "/x", "POST")
	assert.True(t, allowed)
	assert.Equal(t, 4, l.Len())
}

func TestLimiter_UnmatchedPathsShareDefaultBucket(t *testing.T) {
	l, _ := frozenLimiter(&Config{Enabled: true, DefaultRate: 1, DefaultBurst: 1})
	defer l.Stop()

	allowed, _ := l.Allow("a", "/v1/brands", "GET")
	require.True(t, allowed)
	allowed, _ = l.Allow("a", "/v1/brands/lookup", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 1, l.Len())
}

func TestLimiter_PathParametersShareEndpointBucket(t *testing.T) {
	l, _ := frozenLimiter(&Config{
		Enabled:         true,
		DefaultRate:     1,
		DefaultBurst:    1,
		EndpointConfigs: DefaultEndpointConfigs(1, 2),
	})
	defer l.Stop()

	// /v1/tabs/ allows a burst of 4; distinct tab IDs must draw from it.
	for i := 0; i < 4; i++ {
		allowed, _ := l.Allow("a", fmt.Sprintf("/v1/tabs/tab-%d/navigate", i), "POST")
		require.True(t, allowed, "request %d", i+1)
	}
	allowed, _ := l.Allow("a", "/v1/tabs/tab-99/navigate", "POST")
	assert.False(t, allowed)
	assert.Equal(t, 1, l.Len())
}

func TestLimiter_WhitelistAndBlacklist(t *testing.T) {
	l, _ := frozenLimiter(&Config{
		Enabled:      true,
		DefaultRate:  1,
		DefaultBurst: 1,
		Whitelist:    map[string]bool{"127.0.0.1": true},
		Blacklist:    map[string]bool{"192.168.1.1": true},
	})
	defer l.Stop()

	for i := 0; i < 50; i++ {
		allowed, info := l.Allow("127.0.0.1", "/x", "GET")
		require.True(t, allowed)
		assert.Equal(t, 0, info.Limit)
	}
	allowed, _ := l.Allow("192.168.1.1", "/x", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(NewConfig(0, 10))
	defer l.Stop()

	for i := 0; i < 100; i++ {
		allowed, _ := l.Allow("c", "/v1/detect", "POST")
		require.True(t, allowed)
	}
	assert.Equal(t, 0, l.Len())
}

func TestLimiter_HealthIsUnlimited(t *testing.T) {
	l, _ := frozenLimiter(&Config{Enabled: true, DefaultRate: 1, DefaultBurst: 1})
	defer l.Stop()

	for i := 0; i < 20; i++ {
		allowed, _ := l.Allow("c", "/health", "GET")
		require.True(t, allowed)
		allowed, _ = l.Allow("c", "/metrics", "GET")
		require.True(t, allowed)
	}
}

func TestLimiter_EvictIdle(t *testing.T) {
	l, now := frozenLimiter(&Config{Enabled: true, DefaultRate: 1, DefaultBurst: 1, IdleTTL: time.Minute})
	defer l.Stop()

	l.Allow("old", "/x", "GET")
	*now = now.Add(2 * time.Minute)
	l.Allow("new", "/x", "GET")

	l.evictIdle()
	assert.Equal(t, 1, l.Len())
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := frozenLimiter(&Config{Enabled: true, DefaultRate: 1, DefaultBurst: 10})
	defer l.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("c", "/x", "GET"); ok {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowedCount)
}

func TestStop_Idempotent(t *testing.T) {
	l := NewLimiter(DefaultConfig())
	l.Stop()
	l.Stop()
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs(2, 5)

	tests := []struct {
		name      string
		path      string
		method    string
		wantPath  string
		unlimited bool
		wantNil   bool
	}{
		{name: "exact detect", path: "/v1/detect", method: "POST", wantPath: "/v1/detect"},
		{name: "tab prefix", path: "/v1/tabs/42/navigate", method: "POST", wantPath: "/v1/tabs/"},
		{name: "tab delete", path: "/v1/tabs/42", method: "DELETE", wantPath: "/v1/tabs/"},
		{name: "method mismatch", path: "/v1/detect", method: "GET", wantNil: true},
		{name: "health", path: "/health", method: "GET", unlimited: true},
		{name: "metrics", path: "/metrics", method: "GET", unlimited: true},
		{name: "unknown", path: "/v1/brands", method: "GET", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			if tt.unlimited {
				assert.True(t, got.Unlimited())
				return
			}
			assert.Equal(t, tt.wantPath, got.Path)
		})
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(5, 20)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 50.0, cfg.DefaultRate)
	assert.Equal(t, 200, cfg.DefaultBurst)
	assert.Len(t, cfg.EndpointConfigs, 4)

	assert.False(t, NewConfig(-1, 20).Enabled)
}
