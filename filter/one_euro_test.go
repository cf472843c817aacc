package filter

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFilter(t *testing.T, config Config) *OneEuro {
	t.Helper()
	f, err := NewOneEuro(config)
	require.NoError(t, err)
	return f
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1.0, cfg.MinCutoff)
	assert.Equal(t, 0.0, cfg.Beta)
	assert.Equal(t, 1.0, cfg.DerivativeCutoff)
	assert.Equal(t, 30.0, cfg.DefaultFrequency)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero min cutoff", func(c *Config) { c.MinCutoff = 0 }},
		{"negative min cutoff", func(c *Config) { c.MinCutoff = -1 }},
		{"zero derivative cutoff", func(c *Config) { c.DerivativeCutoff = 0 }},
		{"zero frequency", func(c *Config) { c.DefaultFrequency = 0 }},
		{"negative frequency", func(c *Config) { c.DefaultFrequency = -30 }},
		{"infinite frequency", func(c *Config) { c.DefaultFrequency = math.Inf(1) }},
		{"nan cutoff", func(c *Config) { c.MinCutoff = math.NaN() }},
		{"negative beta", func(c *Config) { c.Beta = -0.1 }},
		{"nan beta", func(c *Config) { c.Beta = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewOneEuro(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestFirstSampleIsReturnedUnchanged(t *testing.T) {
	for _, ts := range []float64{0, 12.5, -3} {
		f := newTestFilter(t, DefaultConfig())
		assert.Equal(t, 0.4242, f.FilterAt(0.4242, ts))
	}
	f := newTestFilter(t, DefaultConfig())
	assert.Equal(t, -7.0, f.Filter(-7))
}

func TestSecondSampleBlendsWithAlpha(t *testing.T) {
	cfg := DefaultConfig()
	f := newTestFilter(t, cfg)
	f.Filter(0)
	got := f.Filter(1)

	// beta = 0 so the cutoff is MinCutoff.
	te := 1 / cfg.DefaultFrequency
	tau := 1 / (2 * math.Pi * cfg.MinCutoff)
	alpha := 1 / (1 + tau/te)
	assert.InDelta(t, alpha, got, 1e-12)
}

func TestConstantInputStaysConstant(t *testing.T) {
	f := newTestFilter(t, Config{MinCutoff: 1, Beta: 0.5, DerivativeCutoff: 1, DefaultFrequency: 30})
	for i := 0; i < 100; i++ {
		got := f.FilterAt(0.75, float64(i)/30)
		assert.InDelta(t, 0.75, got, 1e-12)
	}
}

func TestStepConvergesWithoutOvershoot(t *testing.T) {
	for _, beta := range []float64{0, 0.007, 1, 10} {
		f := newTestFilter(t, Config{MinCutoff: 1, Beta: beta, DerivativeCutoff: 1, DefaultFrequency: 30})
		f.FilterAt(0, 0)
		prev := 0.0
		var got float64
		for i := 1; i <= 300; i++ {
			got = f.FilterAt(1, float64(i)/30)
			assert.LessOrEqual(t, got, 1.0+1e-12, "beta=%v sample %d overshoots", beta, i)
			assert.GreaterOrEqual(t, got, prev-1e-12, "beta=%v sample %d moves away", beta, i)
			prev = got
		}
		assert.InDelta(t, 1.0, got, 1e-6, "beta=%v did not converge", beta)
	}
}

func TestHigherBetaTracksFaster(t *testing.T) {
	slow := newTestFilter(t, Config{MinCutoff: 1, Beta: 0, DerivativeCutoff: 1, DefaultFrequency: 30})
	fast := newTestFilter(t, Config{MinCutoff: 1, Beta: 1, DerivativeCutoff: 1, DefaultFrequency: 30})
	slow.Filter(0)
	fast.Filter(0)
	var s, f float64
	for i := 1; i <= 5; i++ {
		s = slow.Filter(float64(i))
		f = fast.Filter(float64(i))
	}
	assert.Greater(t, f, s)
}

func TestTimestampsDriveFrequency(t *testing.T) {
	f := newTestFilter(t, DefaultConfig())
	f.FilterAt(0, 1.0)
	assert.Equal(t, 30.0, f.Frequency())
	f.FilterAt(0, 1.1)
	assert.InDelta(t, 10.0, f.Frequency(), 1e-9)
}

func TestNonPositiveElapsedHoldsFrequency(t *testing.T) {
	for _, name := range []string{"duplicate", "backwards"} {
		t.Run(name, func(t *testing.T) {
			guarded := newTestFilter(t, DefaultConfig())
			held := newTestFilter(t, DefaultConfig())

			guarded.FilterAt(0, 0)
			held.FilterAt(0, 0)
			guarded.FilterAt(1, 0.1)
			held.FilterAt(1, 0.1)

			ts := 0.1
			if name == "backwards" {
				ts = 0.05
			}
			got := guarded.FilterAt(2, ts)
			want := held.Filter(2)

			assert.False(t, math.IsNaN(got))
			assert.False(t, math.IsInf(got, 0))
			assert.Equal(t, want, got)
			assert.InDelta(t, 10.0, guarded.Frequency(), 1e-9)
		})
	}
}

func TestResetRestoresBootstrap(t *testing.T) {
	f := newTestFilter(t, DefaultConfig())
	f.FilterAt(0, 0)
	f.FilterAt(5, 0.5)
	f.Reset()
	assert.Equal(t, 30.0, f.Frequency())
	assert.Equal(t, 3.0, f.FilterAt(3, 0.2))
	assert.Equal(t, 30.0, f.Frequency())
}

func TestNaNPropagates(t *testing.T) {
	f := newTestFilter(t, DefaultConfig())
	f.Filter(0)
	assert.True(t, math.IsNaN(f.Filter(math.NaN())))
}

func TestNewOneEuroRejectsInvalidConfig(t *testing.T) {
	_, err := NewOneEuro(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
