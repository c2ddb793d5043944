package config

import (
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Logger builds the process logger: console output when log.pretty is set, JSON otherwise.
func (c *Config) Logger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// RedisOptions returns nil when no redis address is configured.
func (c *Config) RedisOptions() *redis.Options {
	if c.Redis.Address == "" {
		return nil
	}
	return &redis.Options{Addr: c.Redis.Address, Password: c.Redis.Password, DB: c.Redis.DB}
}
