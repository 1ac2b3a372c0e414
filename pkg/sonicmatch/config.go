package sonicmatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/himanishpuri/SonicMatch/internal/cache"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/features"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/recognition"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/similarity"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/storage"
)

type Config struct {
	DBPath    string
	TempDir   string
	CacheDir  string // empty disables the persistent extraction cache
	Threshold float64
	Weights   similarity.Weights
	Workers   int
	CacheTTL  time.Duration
	Logger    Logger
	Storage   Storage
	Registry  *prometheus.Registry
	Extractor *features.Extractor
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithCacheDir(dir string) Option {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

func WithThreshold(threshold float64) Option {
	return func(c *Config) {
		c.Threshold = threshold
	}
}

func WithWeights(w similarity.Weights) Option {
	return func(c *Config) {
		c.Weights = w
	}
}

// WithWorkers bounds concurrent extractions. Zero means one per CPU.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Config) {
		c.CacheTTL = ttl
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithMetrics registers the service collectors on registry.
func WithMetrics(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func WithExtractor(e *features.Extractor) Option {
	return func(c *Config) {
		c.Extractor = e
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:    storage.DefaultDBFile,
		TempDir:   "/tmp",
		CacheDir:  ".sonicmatch-cache",
		Threshold: recognition.DefaultThreshold,
		Weights:   similarity.DefaultWeights(),
		CacheTTL:  cache.DefaultTTL,
	}
}
