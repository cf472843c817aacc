package filter

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned when a filter is built from unusable tunables.
var ErrInvalidConfig = errors.New("filter: invalid config")

// Config holds the tunables of one OneEuro filter.
type Config struct {
	MinCutoff        float64 `json:"min_cutoff"`        // Cutoff (Hz) at rest. Higher reduces lag, keeps more jitter.
	Beta             float64 `json:"beta"`              // Speed coefficient. 0 disables cutoff adaptation.
	DerivativeCutoff float64 `json:"derivative_cutoff"` // Cutoff (Hz) of the derivative smoother.
	DefaultFrequency float64 `json:"default_frequency"` // Sampling rate (Hz) assumed until timestamps say otherwise.
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MinCutoff:        1.0,
		Beta:             0.0,
		DerivativeCutoff: 1.0,
		DefaultFrequency: 30,
	}
}

// Validate rejects tunables that would make alpha negative, zero or NaN.
func (c Config) Validate() error {
	if !positive(c.MinCutoff) {
		return fmt.Errorf("%w: min cutoff must be positive, got %v", ErrInvalidConfig, c.MinCutoff)
	}
	if !positive(c.DerivativeCutoff) {
		return fmt.Errorf("%w: derivative cutoff must be positive, got %v", ErrInvalidConfig, c.DerivativeCutoff)
	}
	if !positive(c.DefaultFrequency) {
		return fmt.Errorf("%w: default frequency must be positive, got %v", ErrInvalidConfig, c.DefaultFrequency)
	}
	if math.IsNaN(c.Beta) || math.IsInf(c.Beta, 0) || c.Beta < 0 {
		return fmt.Errorf("%w: beta must be a non-negative number, got %v", ErrInvalidConfig, c.Beta)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
