// Package config loads settings for the sonicmatch binaries from flags,
// SONIC_* environment variables, an optional YAML file and a .env file,
// in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/himanishpuri/SonicMatch/pkg/errors"
	"github.com/himanishpuri/SonicMatch/pkg/logger"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/recognition"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/similarity"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/storage"
)

const EnvPrefix = "SONIC"

// Settings is the merged configuration of a binary.
type Settings struct {
	DBPath    string             `mapstructure:"db"`
	TempDir   string             `mapstructure:"temp"`
	CacheDir  string             `mapstructure:"cache-dir"`
	Threshold float64            `mapstructure:"threshold"`
	Workers   int                `mapstructure:"workers"`
	CacheTTL  time.Duration      `mapstructure:"cache-ttl"`
	LogLevel  string             `mapstructure:"log-level"`
	Weights   similarity.Weights `mapstructure:"weights"`

	Port    int    `mapstructure:"port"`
	Origins string `mapstructure:"origins"`
}

func setDefaults(v *viper.Viper) {
	w := similarity.DefaultWeights()
	v.SetDefault("db", storage.DefaultDBFile)
	v.SetDefault("temp", "/tmp")
	v.SetDefault("cache-dir", ".sonicmatch-cache")
	v.SetDefault("threshold", recognition.DefaultThreshold)
	v.SetDefault("workers", 0)
	v.SetDefault("cache-ttl", time.Hour)
	v.SetDefault("log-level", "info")
	v.SetDefault("weights.mfcc", w.MFCC)
	v.SetDefault("weights.chroma", w.Chroma)
	v.SetDefault("weights.contrast", w.Contrast)
	v.SetDefault("weights.tempo", w.Tempo)
	v.SetDefault("weights.spectral", w.Spectral)
	v.SetDefault("port", 8080)
	v.SetDefault("origins", "*")
}

// AddFlags registers the shared persistent flags on cmd. Their defaults
// only show in help output; the effective defaults come from viper.
func AddFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("config", "", "YAML config file")
	f.String("db", storage.DefaultDBFile, "Path to the SQLite database file")
	f.String("temp", "/tmp", "Directory for temporary audio conversion files")
	f.String("cache-dir", ".sonicmatch-cache", "Extraction cache directory (empty disables it)")
	f.Float64("threshold", recognition.DefaultThreshold, "Recognition threshold in [0, 1]")
	f.Int("workers", 0, "Concurrent extractions (0 = one per CPU)")
	f.Duration("cache-ttl", time.Hour, "Feature bundle cache TTL")
	f.String("log-level", "info", "Log level: debug, info, warn, error")
}

// Load merges .env, environment, the optional config file and the flags
// of cmd into Settings.
func Load(cmd *cobra.Command) (*Settings, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("db", EnvPrefix+"_DB", EnvPrefix+"_DB_PATH")

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return nil, fmt.Errorf("error binding flags: %w", err)
		}
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.CategoryConfiguration, "reading config file %s", file)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfiguration, "decoding settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the values a service would reject anyway, so the
// binaries fail before opening any file.
func (s *Settings) Validate() error {
	if err := recognition.ValidateThreshold(s.Threshold); err != nil {
		return err
	}
	if err := s.Weights.Validate(); err != nil {
		return err
	}
	if s.Workers < 0 {
		return errors.Wrap(fmt.Errorf("workers=%d", s.Workers), errors.CategoryConfiguration, "negative worker count")
	}
	if s.Port < 0 || s.Port > 65535 {
		return errors.Wrap(fmt.Errorf("port=%d", s.Port), errors.CategoryConfiguration, "invalid port")
	}
	return nil
}

// AllowedOrigins splits the comma-separated CORS origin list.
func (s *Settings) AllowedOrigins() []string {
	if strings.TrimSpace(s.Origins) == "*" || s.Origins == "" {
		return []string{"*"}
	}
	origins := strings.Split(s.Origins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

// ApplyLogLevel sets the level of the default logger.
func (s *Settings) ApplyLogLevel() {
	logger.SetLevel(logger.ParseLevel(s.LogLevel))
}

// Options converts the settings into service options.
func (s *Settings) Options() []sonicmatch.Option {
	return []sonicmatch.Option{
		sonicmatch.WithDBPath(s.DBPath),
		sonicmatch.WithTempDir(s.TempDir),
		sonicmatch.WithCacheDir(s.CacheDir),
		sonicmatch.WithThreshold(s.Threshold),
		sonicmatch.WithWeights(s.Weights),
		sonicmatch.WithWorkers(s.Workers),
		sonicmatch.WithCacheTTL(s.CacheTTL),
	}
}
