package config

import (
	"log"
	"strings"
	"time"
)

// CacheConfig configures the Redis response cache in front of the public
// queue views.  Mutations bump a generation counter so cached views never
// outlive a join, release or admin change.
type CacheConfig struct {
	Enabled      bool          `env:"CACHE_ENABLED"        envDefault:"true"`
	MethodList   []string      `env:"CACHE_METHODS"        envDefault:"GET" envSeparator:","`
	TTL          time.Duration `env:"CACHE_TTL"            envDefault:"30s"`
	KeyStrategy  string        `env:"CACHE_KEY_STRATEGY"   envDefault:"route_query" validate:"oneof=route route_query"`
	Prefix       string        `env:"CACHE_PREFIX"         envDefault:"cache"`
	MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" envDefault:"1048576" validate:"min=0"`

	Methods map[string]bool // derived from MethodList
}

// LoadCacheConfig reads the cache settings; invalid values disable caching.
func LoadCacheConfig() CacheConfig {
	cfg, err := parseSection[CacheConfig]()
	if err != nil {
		log.Printf("config: cache: %v; caching disabled", err)
		return CacheConfig{Methods: map[string]bool{}}
	}
	cfg.Methods = parseMethods(cfg.MethodList)
	if cfg.TTL <= 0 {
		cfg.TTL = time.Second
	}
	return cfg
}

func parseMethods(list []string) map[string]bool {
	m := map[string]bool{}
	for _, p := range list {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
