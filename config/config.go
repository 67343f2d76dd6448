// Package config loads gymrun settings from the environment and optional
// dotenv files.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/ggoodman/gym-tcp-go/episodes/redis"
)

// ErrInvalidConfig is matched by every error returned from Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the client settings. Defaults are provided via struct tags.
type Config struct {
	Host        string        `env:"GYM_HOST,default=127.0.0.1"`
	Port        int           `env:"GYM_PORT,default=4040"`
	Env         string        `env:"GYM_ENV,default=CartPole-v0"`
	Compression int           `env:"GYM_COMPRESSION,default=0"`
	Render      bool          `env:"GYM_RENDER,default=false"`
	Seed        string        `env:"GYM_SEED"`
	InstanceAck bool          `env:"GYM_INSTANCE_ACK,default=true"`
	DialTimeout time.Duration `env:"GYM_DIAL_TIMEOUT,default=10s"`

	LogLevel  string `env:"GYM_LOG_LEVEL,default=info"`
	LogFormat string `env:"GYM_LOG_FORMAT,default=text"`

	// EpisodesRedisAddr selects the Redis episode store; when empty episodes
	// are kept in memory.
	EpisodesRedisAddr string        `env:"EPISODES_REDIS_ADDR"`
	EpisodesKeyPrefix string        `env:"EPISODES_KEY_PREFIX,default=gym:episodes:"`
	EpisodesTTL       time.Duration `env:"EPISODES_TTL"`
	EpisodesMax       int           `env:"EPISODES_MAX,default=10000"`
}

// Load reads each dotenv file that exists, without overriding variables
// already set, then decodes and validates the environment.
func Load(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and formats.
func (c *Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("GYM_HOST is empty"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("GYM_PORT %d out of range", c.Port))
	}
	if c.Env == "" {
		errs = append(errs, errors.New("GYM_ENV is empty"))
	}
	if c.Compression < 0 || c.Compression > 9 {
		errs = append(errs, fmt.Errorf("GYM_COMPRESSION %d not in 0-9", c.Compression))
	}
	if _, _, err := c.SeedValue(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("GYM_LOG_FORMAT %q is not text or json", c.LogFormat))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// SeedValue parses Seed. ok is false when no seed is configured.
func (c *Config) SeedValue() (seed int64, ok bool, err error) {
	if c.Seed == "" {
		return 0, false, nil
	}
	seed, err = strconv.ParseInt(c.Seed, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("GYM_SEED %q is not an integer", c.Seed)
	}
	return seed, true, nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("GYM_LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return lv, nil
}

// Logger builds a logger writing to w in the configured format and level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	lv, err := c.Level()
	if err != nil {
		lv = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lv}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// RedisConfig returns the Redis episode store settings. It reports false when
// no Redis address is configured.
func (c *Config) RedisConfig() (redis.Config, bool) {
	if c.EpisodesRedisAddr == "" {
		return redis.Config{}, false
	}
	return redis.Config{Addr: c.EpisodesRedisAddr, KeyPrefix: c.EpisodesKeyPrefix, TTL: c.EpisodesTTL}, true
}
