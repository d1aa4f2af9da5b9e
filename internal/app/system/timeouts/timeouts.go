// Package timeouts holds the context deadlines used around store and
// provider I/O.
//
//   - Ping: health checks
//   - Short: single-document reads and writes (session lookups, user by id)
//   - Medium: lists and multi-step writes (reconcile, company creation)
//   - Exchange: the round-trip to the identity provider
//
// Values can be replaced once at startup with Configure; zero fields keep
// the defaults.
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults used until Configure is called.
const (
	DefaultPing     = 2 * time.Second
	DefaultShort    = 5 * time.Second
	DefaultMedium   = 10 * time.Second
	DefaultExchange = 15 * time.Second
)

var (
	mu       sync.RWMutex
	ping     = DefaultPing
	short    = DefaultShort
	medium   = DefaultMedium
	exchange = DefaultExchange
)

// Config holds timeout overrides. Zero values are ignored.
type Config struct {
	Ping     time.Duration
	Short    time.Duration
	Medium   time.Duration
	Exchange time.Duration
}

// Configure applies non-zero values from cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Short > 0 {
		short = cfg.Short
	}
	if cfg.Medium > 0 {
		medium = cfg.Medium
	}
	if cfg.Exchange > 0 {
		exchange = cfg.Exchange
	}
}

// Current returns the active configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{Ping: ping, Short: short, Medium: medium, Exchange: exchange}
}

func Ping() time.Duration     { return Current().Ping }
func Short() time.Duration    { return Current().Short }
func Medium() time.Duration   { return Current().Medium }
func Exchange() time.Duration { return Current().Exchange }

// WithTimeout is context.WithTimeout whose cancel func logs a warning when
// the deadline was what ended the operation.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Exchange(), h.Log, "sso code exchange")
//	defer cancel()
func WithTimeout(parent context.Context, d time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, d)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", d))
		}
		cancel()
	}
}
