// Package filter implements the adaptive "one euro" smoother used to
// stabilise landmark coordinates, plus the per-session bank of filters.
package filter

import "math"

// OneEuro smooths a single scalar stream. The cutoff frequency of the value
// smoother rises with the smoothed speed of the signal, so slow movement is
// heavily filtered and fast movement lags little.
//
// An OneEuro is not safe for concurrent use; samples must arrive in order.
type OneEuro struct {
	config Config

	freq        float64
	lastTime    float64
	hasLastTime bool

	x  lowPass
	dx lowPass
}

// NewOneEuro creates a filter after validating config.
func NewOneEuro(config Config) (*OneEuro, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &OneEuro{
		config: config,
		freq:   config.DefaultFrequency,
	}, nil
}

// Config returns the tunables the filter was built with.
func (f *OneEuro) Config() Config {
	return f.config
}

// Frequency is the sampling rate currently used for alpha and the derivative.
func (f *OneEuro) Frequency() float64 {
	return f.freq
}

// Filter smooths value at the current frequency.
func (f *OneEuro) Filter(value float64) float64 {
	return f.filter(value)
}

// FilterAt smooths value sampled at timestamp (seconds). The frequency is
// re-derived from the previous timestamp; a non-positive elapsed time leaves
// both the frequency and the reference timestamp untouched.
func (f *OneEuro) FilterAt(value, timestamp float64) float64 {
	if f.hasLastTime {
		if elapsed := timestamp - f.lastTime; elapsed > 0 {
			f.freq = 1 / elapsed
			f.lastTime = timestamp
		}
	} else {
		f.lastTime = timestamp
		f.hasLastTime = true
	}
	return f.filter(value)
}

// Reset forgets all history; the next sample is returned unchanged.
func (f *OneEuro) Reset() {
	f.x.reset()
	f.dx.reset()
	f.freq = f.config.DefaultFrequency
	f.lastTime = 0
	f.hasLastTime = false
}

func (f *OneEuro) filter(value float64) float64 {
	dvalue := 0.0
	if f.x.initialized {
		dvalue = (value - f.x.lastRaw()) * f.freq
	}
	edvalue := f.dx.filterWithAlpha(dvalue, f.alpha(f.config.DerivativeCutoff))
	cutoff := f.config.MinCutoff + f.config.Beta*math.Abs(edvalue)
	return f.x.filterWithAlpha(value, f.alpha(cutoff))
}

func (f *OneEuro) alpha(cutoff float64) float64 {
	te := 1 / f.freq
	tau := 1 / (2 * math.Pi * cutoff)
	return 1 / (1 + tau/te)
}
