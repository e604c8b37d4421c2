package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the background attempt writer.
type Config struct {
	// Concurrency is the number of goroutines writing attempts.
	// Default: 2
	Concurrency int

	// QueueSize is how many attempts may wait to be written. Attempts
	// recorded while the queue is full are dropped.
	// Default: 256
	QueueSize int

	// WriteTimeout bounds a single write.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for queued attempts to drain.
	// Default: 10 seconds
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Concurrency:     2,
		QueueSize:       256,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Concurrency > 100 {
		return fmt.Errorf("concurrency too high (max 100), got %d", c.Concurrency)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1, got %d", c.QueueSize)
	}
	if c.WriteTimeout < 100*time.Millisecond {
		return fmt.Errorf("write timeout must be at least 100ms, got %v", c.WriteTimeout)
	}
	if c.ShutdownTimeout < 1*time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	return nil
}
