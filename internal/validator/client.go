// Package validator talks to the external validator API. The core only
// consumes its health endpoint.
package validator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type RetryPolicy struct {
	MaxRetries   int           `json:"maxRetries"`
	InitialDelay time.Duration `json:"initialDelay"`
	MaxDelay     time.Duration `json:"maxDelay"`
}

type Config struct {
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
	Retry    RetryPolicy   `json:"retry"`
}

// Health is the distilled answer: reachable and reporting OK, or not.
type Health struct {
	Healthy bool `json:"healthy"`
}

type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retry.InitialDelay <= 0 {
		cfg.Retry.InitialDelay = 100 * time.Millisecond
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = 2 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// CheckHealth probes GET /health with exponential backoff. An invalid or
// unreachable endpoint resolves to unhealthy, never to an error; the only
// early exit is context cancellation.
func (c *Client) CheckHealth(ctx context.Context) Health {
	delay := c.cfg.Retry.InitialDelay
	for attempt := 0; ; attempt++ {
		if c.probe(ctx) {
			return Health{Healthy: true}
		}
		if attempt >= c.cfg.Retry.MaxRetries {
			return Health{Healthy: false}
		}

		select {
		case <-ctx.Done():
			return Health{Healthy: false}
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.cfg.Retry.MaxDelay {
			delay = c.cfg.Retry.MaxDelay
		}
	}
}

func (c *Client) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"/health", nil)
	if err != nil {
		c.log.Debug().Err(err).Str("endpoint", c.cfg.Endpoint).Msg("validator health request build failed")
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Msg("validator health probe failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Debug().Str("status", fmt.Sprintf("%d", resp.StatusCode)).Msg("validator reported unhealthy")
		return false
	}
	return true
}
