package orchestrator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// RegistrySource yields the raw brand-list payload (CSV or JSON).
type RegistrySource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// RegistrySourceFunc adapts a function to RegistrySource.
type RegistrySourceFunc func(ctx context.Context) ([]byte, error)

// Fetch implements RegistrySource.
func (f RegistrySourceFunc) Fetch(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// StaticRegistry serves a fixed payload.
type StaticRegistry []byte

// Fetch implements RegistrySource.
func (s StaticRegistry) Fetch(context.Context) ([]byte, error) {
	return s, nil
}

// FileRegistry reads the brand list from disk.
type FileRegistry struct {
	Path string
}

// Fetch implements RegistrySource.
func (f FileRegistry) Fetch(context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read brand list %s: %w", f.Path, err)
	}
	return data, nil
}

// HTTPRegistry downloads the brand list.
type HTTPRegistry struct {
	URL    string
	Client *http.Client
}

// maxRegistryBytes caps the brand list download.
const maxRegistryBytes = 4 << 20

// Fetch implements RegistrySource.
func (h HTTPRegistry) Fetch(ctx context.Context) ([]byte, error) {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create brand list request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download brand list: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download brand list: HTTP status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRegistryBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read brand list: %w", err)
	}
	if len(data) > maxRegistryBytes {
		return nil, fmt.Errorf("brand list exceeds %d bytes", maxRegistryBytes)
	}
	return data, nil
}

// NewRegistrySource picks a file or HTTP source from location.
func NewRegistrySource(location string) RegistrySource {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return HTTPRegistry{URL: location}
	}
	return FileRegistry{Path: location}
}

// CachedRegistry reuses the last payload Source returned for TTL, so page
// contexts created in quick succession share one read. Failures are not
// cached.
type CachedRegistry struct {
	source RegistrySource
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	payload []byte
	fetched time.Time
}

// NewCachedRegistry wraps source. A ttl <= 0 disables caching.
func NewCachedRegistry(source RegistrySource, ttl time.Duration) *CachedRegistry {
	return &CachedRegistry{source: source, ttl: ttl, now: time.Now}
}

// Fetch implements RegistrySource.
func (c *CachedRegistry) Fetch(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.payload != nil && now.Sub(c.fetched) < c.ttl {
		return c.payload, nil
	}
	payload, err := c.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.payload, c.fetched = payload, now
	return payload, nil
}
