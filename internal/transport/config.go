package transport

import (
	"time"

	"github.com/danmuck/vrc20/internal/protocol/frame"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines transport timeouts and limits.
type Config struct {
	ConnectTimeout     time.Duration
	IdleTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxConnectAttempts int
	EventBuffer        int
	Limits             frame.Limits
	Backoff            BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		IdleTimeout:        0,
		WriteTimeout:       15 * time.Second,
		MaxConnectAttempts: 3,
		EventBuffer:        64,
		Limits:             frame.DefaultLimits(),
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}
