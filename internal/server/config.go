package server

import "time"

type Config struct {
	// Host to bind. Anything other than loopback defeats the threat model,
	// so the default stands unless a test overrides it.
	Host string

	// Port to bind; 0 picks an ephemeral port.
	Port int

	// Per-client request rate. Generous: legitimate local callers issue a
	// handful of requests, and the approval gate throttles reads anyway.
	RatePerSecond float64
	RateBurst     int
	RateTTL       time.Duration
}

func (c *Config) setDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 50
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 100
	}
	if c.RateTTL <= 0 {
		c.RateTTL = 10 * time.Minute
	}
}
