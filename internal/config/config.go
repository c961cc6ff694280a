// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cenkalti/backoff/v5"
)

// MaxTickInterval is the exclusive upper bound on the poll interval. Slower
// polling makes the overlay visibly lag pans and zooms.
const MaxTickInterval = 500 * time.Millisecond

// ErrIntervalTooLong is returned when the tick interval reaches
// MaxTickInterval.
var ErrIntervalTooLong = errors.New("tick interval must be below 500ms")

// Attach retry policies.
const (
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
)

// Config holds every environment-tunable setting.
type Config struct {
	BackendURL        string        `env:"BLUESCAN_BACKEND_URL"`
	TickInterval      time.Duration `env:"BLUESCAN_TICK_INTERVAL" envDefault:"250ms"`
	FetchTimeout      time.Duration `env:"BLUESCAN_FETCH_TIMEOUT" envDefault:"4s"`
	HealthTimeout     time.Duration `env:"BLUESCAN_HEALTH_TIMEOUT" envDefault:"2500ms"`
	ListEvery         int           `env:"BLUESCAN_LIST_EVERY" envDefault:"1"`
	AttachBackoff     string        `env:"BLUESCAN_ATTACH_BACKOFF" envDefault:"constant"`
	AttachMaxFailures int           `env:"BLUESCAN_ATTACH_MAX_FAILURES" envDefault:"0"`
	LocationXParam    string        `env:"BLUESCAN_LOCATION_X_PARAM" envDefault:"x"`
	LocationYParam    string        `env:"BLUESCAN_LOCATION_Y_PARAM" envDefault:"y"`
	Diagnostics       bool          `env:"BLUESCAN_DIAGNOSTICS" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when the environment is empty.
func Default() Config {
	return Config{
		TickInterval:   250 * time.Millisecond,
		FetchTimeout:   4 * time.Second,
		HealthTimeout:  2500 * time.Millisecond,
		ListEvery:      1,
		AttachBackoff:  BackoffConstant,
		LocationXParam: "x",
		LocationYParam: "y",
		Diagnostics:    true,
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval %v: must be positive", c.TickInterval)
	}
	if c.TickInterval >= MaxTickInterval {
		return fmt.Errorf("%w: got %v", ErrIntervalTooLong, c.TickInterval)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout %v: must be positive", c.FetchTimeout)
	}
	if c.ListEvery < 1 {
		return fmt.Errorf("list every %d: must be at least 1", c.ListEvery)
	}
	if c.AttachMaxFailures < 0 {
		return fmt.Errorf("attach max failures %d: must not be negative", c.AttachMaxFailures)
	}
	switch strings.ToLower(c.AttachBackoff) {
	case BackoffConstant, BackoffExponential:
	default:
		return fmt.Errorf("attach backoff %q: want %s or %s", c.AttachBackoff, BackoffConstant, BackoffExponential)
	}
	return nil
}

// AttachPolicy builds the retry policy used between failed surface
// attaches. The constant policy retries every tick forever; a positive
// AttachMaxFailures makes either policy give up with backoff.Stop.
func (c Config) AttachPolicy() backoff.BackOff {
	var b backoff.BackOff
	if strings.ToLower(c.AttachBackoff) == BackoffExponential {
		e := backoff.NewExponentialBackOff()
		e.InitialInterval = c.TickInterval
		e.MaxInterval = 20 * c.TickInterval
		b = e
	} else {
		b = backoff.NewConstantBackOff(c.TickInterval)
	}
	if c.AttachMaxFailures > 0 {
		b = &limited{BackOff: b, max: c.AttachMaxFailures}
	}
	return b
}

// limited stops a policy after max delays.
type limited struct {
	backoff.BackOff
	max, n int
}

func (l *limited) NextBackOff() time.Duration {
	if l.n >= l.max {
		return backoff.Stop
	}
	l.n++
	return l.BackOff.NextBackOff()
}

func (l *limited) Reset() {
	l.n = 0
	l.BackOff.Reset()
}
