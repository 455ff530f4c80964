package bridge

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
)

// Duration is a time.Duration that decodes from TOML strings ("250ms", "2m").
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Config holds bridge settings. The zero value plus withDefaults is a
// working local configuration; LoadConfig overlays a TOML file onto it.
type Config struct {
	// Interpreter is the external interpreter binary; Args are prepended to
	// every spawn. Env, when non-nil, replaces the inherited environment.
	Interpreter string   `toml:"interpreter"`
	Args        []string `toml:"args"`
	Env         []string `toml:"env"`

	// PoolSize bounds concurrently executing commands.
	PoolSize int `toml:"pool_size"`

	DefaultTimeout     Duration `toml:"default_timeout"`
	InteractiveTimeout Duration `toml:"interactive_timeout"`
	BulkTimeout        Duration `toml:"bulk_timeout"`

	// MaxAttempts caps transient retries per command, first try included.
	MaxAttempts int `toml:"max_attempts"`
	// Backoff between attempts is RetryBase doubled per attempt, capped at
	// RetryCap.
	RetryBase Duration `toml:"retry_base"`
	RetryCap  Duration `toml:"retry_cap"`

	// GracePeriod bounds process reaping after cancellation or kill.
	GracePeriod Duration `toml:"grace_period"`

	// SessionConcurrency is the per-session limit for concurrency-safe
	// commands. Unsafe commands always run exclusively.
	SessionConcurrency int `toml:"session_concurrency"`
	// LivenessInterval is the idle age beyond which a session is pinged
	// before reuse.
	LivenessInterval Duration `toml:"liveness_interval"`

	Logger *zap.Logger `toml:"-"`
}

func (c Config) withDefaults() Config {
	if c.PoolSize <= 0 {
		c.PoolSize = 4
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = Duration(120 * time.Second)
	}
	if c.InteractiveTimeout <= 0 {
		c.InteractiveTimeout = Duration(15 * time.Second)
	}
	if c.BulkTimeout <= 0 {
		c.BulkTimeout = Duration(10 * time.Minute)
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = Duration(250 * time.Millisecond)
	}
	if c.RetryCap <= 0 {
		c.RetryCap = Duration(5 * time.Second)
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = Duration(3 * time.Second)
	}
	if c.SessionConcurrency <= 0 {
		c.SessionConcurrency = 1
	}
	if c.LivenessInterval <= 0 {
		c.LivenessInterval = Duration(30 * time.Second)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// LoadConfig reads a TOML bridge configuration file. Unknown keys are
// rejected so typos surface instead of silently falling back to defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load bridge config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load bridge config %s: unknown key %q", path, undecoded[0])
	}
	return cfg, nil
}
