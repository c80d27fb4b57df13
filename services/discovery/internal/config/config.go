package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultRecommenderBaseURL = "http://127.0.0.1:8000"

type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

type DiscoveryConfig struct {
	RecommenderBaseURL string

	TMDBAPIKey       string
	TMDBBaseURL      string
	TMDBRPS          float64
	TMDBMaxRetries   int
	TMDBFetchRuntime bool
	TMDBCacheTTL     time.Duration
	Breaker          BreakerConfig

	EnrichConcurrency int
	CarouselInterval  time.Duration
	PageTimeout       time.Duration

	CacheTTL time.Duration
	RedisURL string
	NATSURL  string

	RateLimitRPS   float64
	RateLimitBurst int
}

// LoadDiscovery reads the service settings from the environment. Malformed
// values are errors; missing ones take their defaults.
func LoadDiscovery() (DiscoveryConfig, error) {
	cfg := DiscoveryConfig{
		RecommenderBaseURL: envString("RECOMMENDER_BASE_URL", DefaultRecommenderBaseURL),
		TMDBAPIKey:         strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL:        envString("TMDB_BASE_URL", ""),
		RedisURL:           envString("REDIS_URL", ""),
		NATSURL:            envString("NATS_URL", ""),
	}
	if cfg.TMDBAPIKey == "" {
		return DiscoveryConfig{}, errors.New("TMDB_API_KEY is required")
	}

	var errs []error
	cfg.TMDBRPS = envFloat("TMDB_RPS", 20, &errs)
	cfg.TMDBMaxRetries = envInt("TMDB_MAX_RETRIES", 2, &errs)
	cfg.TMDBFetchRuntime = envBool("TMDB_FETCH_RUNTIME", false, &errs)
	cfg.TMDBCacheTTL = envDuration("TMDB_CACHE_TTL", 24*time.Hour, &errs)
	cfg.Breaker = BreakerConfig{
		MaxRequests:      uint32(envInt("CB_MAX_REQUESTS", 1, &errs)),
		Interval:         envDuration("CB_INTERVAL", 60*time.Second, &errs),
		Timeout:          envDuration("CB_TIMEOUT", 30*time.Second, &errs),
		FailureThreshold: uint32(envInt("CB_FAILURE_THRESHOLD", 5, &errs)),
	}
	cfg.EnrichConcurrency = envInt("ENRICH_CONCURRENCY", 8, &errs)
	cfg.CarouselInterval = envDuration("CAROUSEL_INTERVAL", 4*time.Second, &errs)
	cfg.PageTimeout = envDuration("PAGE_TIMEOUT", 10*time.Second, &errs)
	cfg.CacheTTL = envDuration("CACHE_TTL", 60*time.Second, &errs)
	cfg.RateLimitRPS = envFloat("RATE_LIMIT_RPS", 20, &errs)
	cfg.RateLimitBurst = envInt("RATE_LIMIT_BURST", 40, &errs)

	if err := errors.Join(errs...); err != nil {
		return DiscoveryConfig{}, err
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid non-negative integer %q", key, v))
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid positive number %q", key, v))
		return fallback
	}
	return f
}

func envBool(key string, fallback bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}
