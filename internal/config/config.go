// Package config provides configuration loading and validation for the CLI
// and the detection service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// CASHBACK_DETECTION_THRESHOLD.
const EnvPrefix = "CASHBACK"

// Config is the full runtime configuration.
type Config struct {
	Detection DetectionConfig `mapstructure:"detection"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Search    SearchConfig    `mapstructure:"search"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DetectionConfig tunes evaluation.
type DetectionConfig struct {
	Threshold     int           `mapstructure:"threshold" validate:"min=1,max=180"`
	RetryAttempts int           `mapstructure:"retry_attempts" validate:"min=1,max=5"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" validate:"min=0"`
	UseBrowser    bool          `mapstructure:"use_browser"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout" validate:"gt=0"`
	Concurrency   int           `mapstructure:"concurrency" validate:"min=1,max=64"`
}

// RegistryConfig locates the brand list: a file path or an http(s) URL.
type RegistryConfig struct {
	Location string        `mapstructure:"location"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"min=0"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimit      float64       `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst      int           `mapstructure:"rate_burst" validate:"min=1"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	// TrustedProxies lists the peers (IPs or CIDRs) whose X-Forwarded-For
	// header is believed. Empty means clients are keyed by their own address.
	TrustedProxies []string `mapstructure:"trusted_proxies" validate:"dive,cidr|ip"`
}

// StoreConfig selects the page-view store backend.
type StoreConfig struct {
	Type          string        `mapstructure:"type" validate:"oneof=memory redis"`
	RedisAddress  string        `mapstructure:"redis_address"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" validate:"min=0"`
	TTL           time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// DatabaseConfig enables detection history when URL is set.
type DatabaseConfig struct {
	URL     string `mapstructure:"url" validate:"omitempty,url"`
	Migrate bool   `mapstructure:"migrate"`
}

// SearchConfig configures the outbound cashback search link.
type SearchConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	Suffix  string `mapstructure:"suffix"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("detection.threshold", 75)
	v.SetDefault("detection.retry_attempts", 2)
	v.SetDefault("detection.retry_delay", 3*time.Second)
	v.SetDefault("detection.use_browser", false)
	v.SetDefault("detection.fetch_timeout", 20*time.Second)
	v.SetDefault("detection.concurrency", 4)

	v.SetDefault("registry.location", "")
	v.SetDefault("registry.cache_ttl", 5*time.Minute)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "cashback-scout")
	v.SetDefault("auth.expiration_hours", 24*30)

	v.SetDefault("store.type", "memory")
	v.SetDefault("store.redis_address", "")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.ttl", 30*time.Minute)

	v.SetDefault("database.url", "")
	v.SetDefault("database.migrate", true)

	v.SetDefault("search.base_url", "")
	v.SetDefault("search.suffix", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Default returns the built-in defaults, ignoring files and environment.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("default configuration invalid: %v", err))
	}
	return cfg
}

// Load reads path (if non-empty) or an optional cashback.{yaml,json} from the
// working directory, applies CASHBACK_* environment overrides and validates
// the result.
func Load(path string) (*Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("cashback")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvFile loads the first .env file found among paths into the process
// environment. Existing variables win. Returns the loaded path or "".
func LoadEnvFile(paths ...string) string {
	if len(paths) == 0 {
		paths = []string{".env", "../.env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config error: '%s' failed '%s' (value %v)", fieldKey(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.Store.Type == "redis" && c.Store.RedisAddress == "" {
		return fmt.Errorf("config error: 'store.redis_address' is required when store.type is redis")
	}
	if err := c.Auth.normalize(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// fieldKey turns "Config.Store.TTL" into "store.ttl".
func fieldKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults. CLI flag values are merged over the loaded file this way.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Registry.Location == "" {
		result.Registry.Location = defaults.Registry.Location
	}
	if result.Registry.CacheTTL == 0 {
		result.Registry.CacheTTL = defaults.Registry.CacheTTL
	}
	if result.Database.URL == "" {
		result.Database = defaults.Database
	}
	if result.Search.BaseURL == "" {
		result.Search.BaseURL = defaults.Search.BaseURL
	}
	if result.Search.Suffix == "" {
		result.Search.Suffix = defaults.Search.Suffix
	}
	if result.Logging.Level == "" {
		result.Logging.Level = defaults.Logging.Level
	}
	if result.Logging.Format == "" {
		result.Logging.Format = defaults.Logging.Format
	}
	if result.Store.Type == "" {
		result.Store = defaults.Store
	}
	if result.Auth.Secret == "" {
		result.Auth = defaults.Auth
	}
	if len(result.Server.AllowedOrigins) == 0 {
		result.Server.AllowedOrigins = defaults.Server.AllowedOrigins
	}
	if len(result.Server.TrustedProxies) == 0 {
		result.Server.TrustedProxies = defaults.Server.TrustedProxies
	}

	if result.Detection.Threshold == 0 {
		result.Detection.Threshold = defaults.Detection.Threshold
	}
	if result.Detection.RetryAttempts == 0 {
		result.Detection.RetryAttempts = defaults.Detection.RetryAttempts
	}
	if result.Detection.RetryDelay == 0 {
		result.Detection.RetryDelay = defaults.Detection.RetryDelay
	}
	if result.Detection.FetchTimeout == 0 {
		result.Detection.FetchTimeout = defaults.Detection.FetchTimeout
	}
	if result.Detection.Concurrency == 0 {
		result.Detection.Concurrency = defaults.Detection.Concurrency
	}
	result.Detection.UseBrowser = result.Detection.UseBrowser || defaults.Detection.UseBrowser

	if result.Server.Port == 0 {
		result.Server.Port = defaults.Server.Port
	}
	if result.Server.RateLimit == 0 {
		result.Server.RateLimit = defaults.Server.RateLimit
	}
	if result.Server.RateBurst == 0 {
		result.Server.RateBurst = defaults.Server.RateBurst
	}
	if result.Server.ReadTimeout == 0 {
		result.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if result.Server.WriteTimeout == 0 {
		result.Server.WriteTimeout = defaults.Server.WriteTimeout
	}

	return result
}
