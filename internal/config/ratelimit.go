package config

import (
	"log"
	"time"
)

// RateLimitConfig tunes the Redis token bucket applied to the public
// join/release endpoints.
type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED"         envDefault:"true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY"        envDefault:"20"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS"   envDefault:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"3s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL"             envDefault:"10m"`
	KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY"    envDefault:"ip_route" validate:"oneof=ip ip_route ip_user_route"`
	Prefix         string        `env:"RATE_LIMIT_PREFIX"          envDefault:"rl"`
	Debug          bool          `env:"RATE_LIMIT_DEBUG"           envDefault:"false"`
}

// LoadRateLimitConfig reads the rate limit settings.  Invalid values fall
// back to the defaults with a log line rather than stopping the server.
func LoadRateLimitConfig() RateLimitConfig {
	cfg, err := parseSection[RateLimitConfig]()
	if err != nil {
		log.Printf("config: rate limit: %v; using defaults", err)
		cfg = RateLimitConfig{
			Enabled:        true,
			Capacity:       20,
			RefillTokens:   1,
			RefillInterval: 3 * time.Second,
			TTL:            10 * time.Minute,
			KeyStrategy:    "ip_route",
			Prefix:         "rl",
		}
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	// a bucket must outlive a few refills or it resets to full too early
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}
