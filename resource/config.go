package resource

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MaxBatchSize caps how many ids a single eager-load fetch may carry.
const MaxBatchSize = 400

// Config tunes the resolution engine.
type Config struct {
	// BatchSize is the number of ids per eager-load fetch.
	BatchSize int
	// BatchConcurrency bounds concurrent batch fetches. 1 runs them in order.
	BatchConcurrency int
	// DefaultTTL caches store answers when a cache service is configured.
	// Zero disables caching unless a query opts in with WithTTL.
	DefaultTTL time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:        MaxBatchSize,
		BatchConcurrency: 1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1), validation.Max(MaxBatchSize)),
		validation.Field(&c.BatchConcurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.DefaultTTL, validation.Min(time.Duration(0))),
	)
}
