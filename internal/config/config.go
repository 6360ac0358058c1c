package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Location is a named coordinate pair tracked for cache warming.
type Location struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"lat"`
	Longitude float64 `yaml:"lon"`
}

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	PredictorURL           string
	PredictorTimeout       time.Duration
	PredictorMaxConcurrent int64

	RequestTimeout time.Duration

	CacheBackend        string // "in_memory" or "memcached"
	CacheTTL            time.Duration
	CacheMaxEntries     int
	CacheSweepInterval  time.Duration
	CoalesceWaitTimeout time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	BreakerEnabled          bool
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration

	ShutdownTimeout time.Duration

	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	IdleThresholdReqPerMin int
	IdleWindow             time.Duration
	MinimumLifespan        time.Duration
	DegradedWindow         time.Duration
	DegradedErrorPct       int

	WarmingEnabled  bool
	WarmingInterval time.Duration
	Locations       []Location

	HistoryMaxPerKey int
	HistoryMaxAge    time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Predictor struct {
		URL           string `yaml:"url"`
		Timeout       string `yaml:"timeout"`
		MaxConcurrent int64  `yaml:"max_concurrent"`
	} `yaml:"predictor"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend             string `yaml:"backend"`
		TTL                 string `yaml:"ttl"`
		MaxEntries          int    `yaml:"max_entries"`
		SweepInterval       string `yaml:"sweep_interval"`
		CoalesceWaitTimeout string `yaml:"coalesce_wait_timeout"`
		Memcached           struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
		Breaker        struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"breaker"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow         string `yaml:"overload_window"`
		OverloadThresholdPct   int    `yaml:"overload_threshold_pct"`
		IdleThresholdReqPerMin int    `yaml:"idle_threshold_req_per_min"`
		IdleWindow             string `yaml:"idle_window"`
		MinimumLifespan        string `yaml:"minimum_lifespan"`
		DegradedWindow         string `yaml:"degraded_window"`
		DegradedErrorPct       int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Warming struct {
		Enabled   *bool      `yaml:"enabled"`
		Interval  string     `yaml:"interval"`
		Locations []Location `yaml:"locations"`
	} `yaml:"warming"`

	History struct {
		MaxPerKey int    `yaml:"max_per_key"`
		MaxAge    string `yaml:"max_age"`
	} `yaml:"history"`
}

// defaultLocations are warmed when the config names none. High fire-risk
// California metros.
var defaultLocations = []Location{
	{Name: "Los Angeles", Latitude: 34.05, Longitude: -118.25},
	{Name: "San Francisco", Latitude: 37.77, Longitude: -122.42},
	{Name: "Sacramento", Latitude: 38.58, Longitude: -121.49},
	{Name: "San Diego", Latitude: 32.72, Longitude: -117.16},
	{Name: "Fresno", Latitude: 36.74, Longitude: -119.78},
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) with
// env-variable overrides. The predictor base URL is the one required value:
// PREDICTOR_URL env or predictor.url in YAML. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.PredictorURL = strings.TrimSpace(os.Getenv("PREDICTOR_URL"))
	if cfg.PredictorURL == "" {
		cfg.PredictorURL = strings.TrimSpace(fc.Predictor.URL)
	}
	if cfg.PredictorURL == "" {
		return nil, fmt.Errorf("PREDICTOR_URL required (set env or config predictor.url)")
	}
	cfg.PredictorTimeout = parseDuration(fc.Predictor.Timeout, 2*time.Second)
	cfg.PredictorMaxConcurrent = fc.Predictor.MaxConcurrent
	if cfg.PredictorMaxConcurrent <= 0 {
		cfg.PredictorMaxConcurrent = 32
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, time.Hour)
	cfg.CacheMaxEntries = fc.Cache.MaxEntries
	if cfg.CacheMaxEntries <= 0 {
		cfg.CacheMaxEntries = 10000
	}
	cfg.CacheSweepInterval = parseDuration(fc.Cache.SweepInterval, 5*time.Minute)
	cfg.CoalesceWaitTimeout = parseDuration(fc.Cache.CoalesceWaitTimeout, 10*time.Second)

	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.BreakerEnabled = true
	if fc.Reliability.Breaker.Enabled != nil {
		cfg.BreakerEnabled = *fc.Reliability.Breaker.Enabled
	}
	cfg.BreakerFailureThreshold = fc.Reliability.Breaker.FailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerSuccessThreshold = fc.Reliability.Breaker.SuccessThreshold
	if cfg.BreakerSuccessThreshold <= 0 {
		cfg.BreakerSuccessThreshold = 2
	}
	cfg.BreakerTimeout = parseDuration(fc.Reliability.Breaker.Timeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.IdleThresholdReqPerMin = fc.Lifecycle.IdleThresholdReqPerMin
	if cfg.IdleThresholdReqPerMin <= 0 {
		cfg.IdleThresholdReqPerMin = 5
	}
	cfg.IdleWindow = parseDuration(fc.Lifecycle.IdleWindow, 5*time.Minute)
	cfg.MinimumLifespan = parseDuration(fc.Lifecycle.MinimumLifespan, 5*time.Minute)
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}

	cfg.WarmingEnabled = true
	if fc.Warming.Enabled != nil {
		cfg.WarmingEnabled = *fc.Warming.Enabled
	}
	cfg.WarmingInterval = parseDuration(fc.Warming.Interval, 30*time.Minute)
	cfg.Locations = fc.Warming.Locations
	if len(cfg.Locations) == 0 {
		cfg.Locations = defaultLocations
	}

	cfg.HistoryMaxPerKey = fc.History.MaxPerKey
	if cfg.HistoryMaxPerKey <= 0 {
		cfg.HistoryMaxPerKey = 100
	}
	cfg.HistoryMaxAge = parseDuration(fc.History.MaxAge, 24*time.Hour)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. The request timeout must exceed
// the predictor timeout or cache misses can never complete; it is raised
// rather than rejected.
func validate(cfg *Config) error {
	if cfg.RequestTimeout <= cfg.PredictorTimeout {
		cfg.RequestTimeout = cfg.PredictorTimeout + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	for _, loc := range cfg.Locations {
		if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
			return fmt.Errorf("warming location %q has out-of-range coordinates", loc.Name)
		}
	}
	return nil
}
