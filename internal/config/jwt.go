package config

import (
	"fmt"
	"time"
)

// minSecretLength is the shortest accepted HMAC secret.
const minSecretLength = 16

// AuthConfig holds configuration for extension client tokens.
type AuthConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Secret          string `mapstructure:"secret"`
	Issuer          string `mapstructure:"issuer"`
	ExpirationHours int    `mapstructure:"expiration_hours" validate:"min=1"`
}

// TokenTTL returns the lifetime of issued tokens.
func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

// normalize validates the configuration.
func (c *AuthConfig) normalize() error {
	if !c.Enabled && c.Secret == "" {
		return nil
	}
	if c.Secret == "" {
		return fmt.Errorf("'auth.secret' is required when auth is enabled")
	}
	if len(c.Secret) < minSecretLength {
		return fmt.Errorf("'auth.secret' must be at least %d characters", minSecretLength)
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("'auth.expiration_hours' must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
