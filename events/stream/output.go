package stream

import (
	"marionette/core"
	"marionette/protocol"
)

// Event ids, as exposed to client listeners.
const (
	LoadStream      = "LOAD_STREAM"
	IceCandidate    = "ICE_CANDIDATE"
	InferenceResult = "INFERENCE_RESULT"
	Error           = "ERROR"
)

// ErrorMessage classifies ErrorEvent.
type ErrorMessage string

const (
	ErrorUnauthorized ErrorMessage = "UNAUTHORIZED"
	ErrorUnknown      ErrorMessage = "UNKNOWN_ERROR"
	ErrorDecode       ErrorMessage = "DECODE_ERROR"
)

// LoadStreamEvent fires once the local video track is attached to the peer.
type LoadStreamEvent struct {
	TrackID  string
	StreamID string
	MimeType string
}

func (e *LoadStreamEvent) GetId() string {
	return LoadStream
}

// IceCandidateEvent reports ICE connection state changes while publishing.
type IceCandidateEvent struct {
	State string
}

func (e *IceCandidateEvent) GetId() string {
	return IceCandidate
}

// InferenceResultEvent carries one decoded frame.
type InferenceResultEvent struct {
	Landmarks core.LandmarkSet
	Sequence  uint32
	FPS       int32
	Response  *protocol.StreamResponse
}

func (e *InferenceResultEvent) GetId() string {
	return InferenceResult
}

type ErrorEvent struct {
	Message ErrorMessage
	Err     error
}

func (e *ErrorEvent) GetId() string {
	return Error
}
