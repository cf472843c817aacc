package landmark

import "marionette/filter"

// Config selects the deserializer mode and its filter tunables.
type Config struct {
	Filtered           bool          `json:"filtered"`             // Route every coordinate through its smoothing filter.
	UseFrameTimestamps bool          `json:"use_frame_timestamps"` // Filtered mode only: derive the filter frequency from frame timestamps instead of holding DefaultFrequency.
	Filter             filter.Config `json:"filter"`               // Tunables shared by every coordinate filter.
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Filtered:           true,
		UseFrameTimestamps: false,
		Filter:             filter.DefaultConfig(),
	}
}
