// Package webrtc is the publishing side of the media session: a single
// pion peer connection that sends the camera feed to the inference backend.
package webrtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"marionette/core"
	"marionette/sdp"
	"marionette/transports/backend"

	pion "github.com/pion/webrtc/v4"
)

const (
	DefaultSTUNURL = "stun:stun.l.google.com:19302"
	DefaultTURNURL = "turn:turn.goodganglabs.xyz:3478"
)

// ErrClosed is returned by operations on a closed peer.
var ErrClosed = errors.New("webrtc: peer closed")

// CandidateType selects the ICE transport policy.
type CandidateType string

const (
	CandidateSTUN CandidateType = "STUN"
	// CandidateTURN forces relayed candidates only.
	CandidateTURN CandidateType = "TURN"
)

// PeerConfig configures the peer connection's ICE servers.
type PeerConfig struct {
	STUNURLs      []string
	TURNURL       string
	CandidateType CandidateType
}

// DefaultPeerConfig returns the production ICE setup.
func DefaultPeerConfig() PeerConfig {
	return PeerConfig{
		STUNURLs:      []string{DefaultSTUNURL},
		TURNURL:       DefaultTURNURL,
		CandidateType: CandidateSTUN,
	}
}

// ExchangeFunc delivers the local offer to the remote side and returns its answer.
type ExchangeFunc func(ctx context.Context, offer backend.SessionDescription) (*backend.SessionDescription, error)

// Peer wraps a pion PeerConnection used as a send-only publisher.
type Peer struct {
	pc     *pion.PeerConnection
	logger *core.Logger

	mu     sync.Mutex
	closed bool
}

// NewPeer creates the peer connection. cred may be nil, in which case the
// TURN server is skipped.
func NewPeer(cfg PeerConfig, cred *backend.TurnCredential, logger *core.Logger) (*Peer, error) {
	if logger == nil {
		logger = core.GetLogger()
	}

	var servers []pion.ICEServer
	if len(cfg.STUNURLs) > 0 {
		servers = append(servers, pion.ICEServer{URLs: cfg.STUNURLs})
	}
	if cfg.TURNURL != "" && cred != nil {
		servers = append(servers, pion.ICEServer{
			URLs:           []string{cfg.TURNURL},
			Username:       cred.Username,
			Credential:     cred.Credential,
			CredentialType: pion.ICECredentialTypePassword,
		})
	}

	pcConfig := pion.Configuration{ICEServers: servers}
	if cfg.CandidateType == CandidateTURN {
		pcConfig.ICETransportPolicy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pcConfig)
	if err != nil {
		return nil, fmt.Errorf("webrtc: new peer connection: %w", err)
	}
	return &Peer{
		pc:     pc,
		logger: logger.With(map[string]interface{}{"component": "peer"}),
	}, nil
}

// AddVideoTrack attaches a sample track to the connection. RTCP from the
// remote side is drained in the background.
func (p *Peer) AddVideoTrack(mimeType, streamID string) (*pion.TrackLocalStaticSample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	track, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: mimeType}, "video", streamID)
	if err != nil {
		return nil, fmt.Errorf("webrtc: new track: %w", err)
	}
	sender, err := p.pc.AddTrack(track)
	if err != nil {
		return nil, fmt.Errorf("webrtc: add track: %w", err)
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return track, nil
}

// OnICEStateChange registers a callback for ICE connection state changes.
func (p *Peer) OnICEStateChange(fn func(state string)) {
	p.pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		fn(state.String())
	})
}

// Negotiate runs the offer/answer exchange. The offer sent to the remote
// side only advertises codec within mediaKind. When the filtered offer no
// longer parses the unmodified offer is sent instead.
func (p *Peer) Negotiate(ctx context.Context, mediaKind, codec string, exchange ExchangeFunc) error {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("webrtc: create offer: %w", err)
	}

	gathered := pion.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("webrtc: set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return ctx.Err()
	}

	local := p.pc.LocalDescription()
	if local == nil {
		return ErrClosed
	}

	text := sdp.Rewrite(local.SDP, mediaKind, codec)
	if formats, err := sdp.MediaFormats(text, mediaKind); err != nil || len(formats) == 0 {
		p.logger.With(map[string]interface{}{"error": err, "codec": codec}).Warn("filtered offer rejected, sending unmodified offer")
		text = local.SDP
	} else {
		p.logger.With(map[string]interface{}{"formats": formats, "codec": codec}).Debug("offer filtered")
	}

	answer, err := exchange(ctx, backend.SessionDescription{Type: local.Type.String(), SDP: text})
	if err != nil {
		return fmt.Errorf("webrtc: exchange offer: %w", err)
	}

	if err := p.pc.SetRemoteDescription(pion.SessionDescription{
		Type: pion.NewSDPType(answer.Type),
		SDP:  answer.SDP,
	}); err != nil {
		return fmt.Errorf("webrtc: set remote description: %w", err)
	}
	return nil
}

// Close stops every transceiver and closes the connection. Safe to call twice.
func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	for _, t := range p.pc.GetTransceivers() {
		if err := t.Stop(); err != nil {
			p.logger.With(map[string]interface{}{"error": err}).Debug("failed to stop transceiver")
		}
	}
	if err := p.pc.Close(); err != nil {
		return fmt.Errorf("webrtc: close: %w", err)
	}
	return nil
}
