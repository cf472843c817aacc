package session

import (
	"marionette/filter"
	"marionette/landmark"
	"marionette/transports/backend"
	"marionette/transports/webrtc"
)

// Config holds the stream configuration of a Client.
type Config struct {
	Host          string                  `json:"host"`
	DeviceID      string                  `json:"device_id"` // video source label; informational
	Width         int                     `json:"width"`
	Height        int                     `json:"height"`
	FrameRate     int                     `json:"frame_rate"`
	Bitrate       int                     `json:"bitrate"` // bits per second, advisory
	CandidateType webrtc.CandidateType    `json:"candidate_type"`
	Model         []backend.InferenceType `json:"model"`
	Processor     backend.ProcessorType   `json:"processor"`
	Debug         bool                    `json:"debug"` // collect telemetry and send the debug report on Stop
	Codec         string                  `json:"codec"`
	STUNURLs      []string                `json:"stun_urls"`
	TURNURL       string                  `json:"turn_url"`
	Landmarks     *landmark.Config        `json:"landmarks,omitempty"` // nil keeps the current landmark settings
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	peer := webrtc.DefaultPeerConfig()
	return Config{
		Host:          backend.DefaultHost,
		Width:         320,
		Height:        240,
		FrameRate:     30,
		Bitrate:       50000,
		CandidateType: webrtc.CandidateSTUN,
		Model:         []backend.InferenceType{backend.InferenceHolistic},
		Processor:     backend.ProcessorGPU,
		Debug:         false,
		Codec:         "H264/90000",
		STUNURLs:      peer.STUNURLs,
		TURNURL:       peer.TURNURL,
		Landmarks:     ptr(landmark.DefaultConfig()),
	}
}

// Merge returns c with every non-zero field of override applied. Debug can
// only be switched on. A non-nil override.Landmarks always sets Filtered and
// UseFrameTimestamps; its filter tunables apply field by field where non-zero.
func (c Config) Merge(override Config) Config {
	if override.Host != "" {
		c.Host = override.Host
	}
	if override.DeviceID != "" {
		c.DeviceID = override.DeviceID
	}
	if override.Width != 0 {
		c.Width = override.Width
	}
	if override.Height != 0 {
		c.Height = override.Height
	}
	if override.FrameRate != 0 {
		c.FrameRate = override.FrameRate
	}
	if override.Bitrate != 0 {
		c.Bitrate = override.Bitrate
	}
	if override.CandidateType != "" {
		c.CandidateType = override.CandidateType
	}
	if len(override.Model) > 0 {
		c.Model = append([]backend.InferenceType(nil), override.Model...)
	}
	if override.Processor != "" {
		c.Processor = override.Processor
	}
	c.Debug = c.Debug || override.Debug
	if override.Codec != "" {
		c.Codec = override.Codec
	}
	if len(override.STUNURLs) > 0 {
		c.STUNURLs = append([]string(nil), override.STUNURLs...)
	}
	if override.TURNURL != "" {
		c.TURNURL = override.TURNURL
	}
	c.Landmarks = ptr(c.LandmarkConfig())
	if override.Landmarks != nil {
		c.Landmarks.Filtered = override.Landmarks.Filtered
		c.Landmarks.UseFrameTimestamps = override.Landmarks.UseFrameTimestamps
		c.Landmarks.Filter = mergeFilter(c.Landmarks.Filter, override.Landmarks.Filter)
	}
	return c
}

// LandmarkConfig returns the landmark settings, or the defaults when unset.
func (c Config) LandmarkConfig() landmark.Config {
	if c.Landmarks == nil {
		return landmark.DefaultConfig()
	}
	return *c.Landmarks
}

func mergeFilter(base, override filter.Config) filter.Config {
	if override.MinCutoff != 0 {
		base.MinCutoff = override.MinCutoff
	}
	if override.Beta != 0 {
		base.Beta = override.Beta
	}
	if override.DerivativeCutoff != 0 {
		base.DerivativeCutoff = override.DerivativeCutoff
	}
	if override.DefaultFrequency != 0 {
		base.DefaultFrequency = override.DefaultFrequency
	}
	return base
}

func ptr[T any](v T) *T {
	return &v
}

func (c Config) peerConfig() webrtc.PeerConfig {
	return webrtc.PeerConfig{
		STUNURLs:      c.STUNURLs,
		TURNURL:       c.TURNURL,
		CandidateType: c.CandidateType,
	}
}
