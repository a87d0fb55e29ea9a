package ratelimit

import (
	"time"
)

// EndpointConfig is the limit for one route.
type EndpointConfig struct {
	Path   string  // exact path, or a prefix when it ends with "/"
	Method string  // HTTP method
	Rate   float64 // tokens per second; <= 0 means unlimited
	Burst  int     // bucket size
}

// Unlimited reports whether requests to the endpoint are never throttled.
func (e *EndpointConfig) Unlimited() bool {
	return e.Rate <= 0
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultRate     float64
	DefaultBurst    int
	IdleTTL         time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// DefaultConfig allows 5 detections per second with a burst of 20.
func DefaultConfig() *Config {
	return NewConfig(5, 20)
}

// NewConfig builds a config where detection endpoints get perSecond/burst
// and cheap reads get ten times that. perSecond <= 0 disables limiting.
func NewConfig(perSecond float64, burst int) *Config {
	if perSecond <= 0 {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultRate:     perSecond * 10,
		DefaultBurst:    burst * 10,
		IdleTTL:         time.Hour,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       make(map[string]bool),
		Blacklist:       make(map[string]bool),
		EndpointConfigs: DefaultEndpointConfigs(perSecond, burst),
	}
}

// DefaultEndpointConfigs returns the limits for page evaluation routes.
func DefaultEndpointConfigs(perSecond float64, burst int) []EndpointConfig {
	return []EndpointConfig{
		{Path: "/v1/detect", Method: "POST", Rate: perSecond, Burst: burst},
		{Path: "/v1/debug", Method: "POST", Rate: perSecond, Burst: burst},
		{Path: "/v1/tabs/", Method: "POST", Rate: perSecond * 4, Burst: burst * 2},
		{Path: "/v1/tabs/", Method: "DELETE", Rate: perSecond * 4, Burst: burst * 2},
	}
}
