// Package session drives one landmark streaming session: it authorizes with
// the backend, publishes a video track over WebRTC and turns the result
// stream into decoded landmark events.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"marionette/core"
	"marionette/events/stream"
	"marionette/landmark"
	"marionette/protocol"
	"marionette/socket"
	"marionette/telemetry"
	"marionette/transports/backend"
	"marionette/transports/webrtc"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
)

var (
	// ErrNotConnected is returned when Connect has not succeeded yet, or the
	// peer was torn down by Stop.
	ErrNotConnected = errors.New("session: not connected")
	// ErrNoTrack is returned by Publish before LoadStream.
	ErrNoTrack = errors.New("session: no video track loaded")
)

const (
	signalPath = "/stream"
	resultPath = "/result"
)

// Client is one streaming session against the inference backend.
type Client struct {
	config    Config
	sessionID string
	api       *backend.APIClient
	emitter   *core.Emitter
	debug     *telemetry.Collector
	logger    *core.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	peer         *webrtc.Peer
	track        *pion.TrackLocalStaticSample
	signal       *socket.Client
	result       *socket.Client
	deserializer *landmark.Deserializer
	publishing   bool
	startedAt    time.Time
}

// Option configures a Client.
type Option func(*options)

type options struct {
	sessionID string
}

// WithSessionID sets the session id instead of generating one.
func WithSessionID(id string) Option {
	return func(o *options) {
		o.sessionID = id
	}
}

// NewClient creates a session client. Nothing touches the network until Connect.
func NewClient(cfg Config, logger *core.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = core.GetLogger()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	sessionID := o.sessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	config := DefaultConfig().Merge(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config:    config,
		sessionID: sessionID,
		api:       backend.NewAPIClient(config.Host),
		emitter:   core.NewEmitter(sessionID),
		debug:     telemetry.NewCollector(),
		logger:    logger.With(map[string]interface{}{"component": "session", "session_id": sessionID}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SessionID identifies this session to the backend.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Logger is the client's logger, tagged with the session id.
func (c *Client) Logger() *core.Logger {
	return c.logger
}

// Config returns the current stream configuration.
func (c *Client) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// On registers a listener for one of the stream event ids.
func (c *Client) On(status string, listener core.Listener) {
	c.emitter.On(status, listener)
}

// Connect authorizes with code, prepares the peer connection and joins the
// signal and result sockets.
func (c *Client) Connect(ctx context.Context, code string) error {
	if err := c.api.Authorize(ctx, code); err != nil {
		c.emitError(stream.ErrorUnauthorized, err)
		return fmt.Errorf("session: %w", err)
	}

	cred, err := c.api.FetchCredential(ctx)
	if err != nil {
		c.emitError(stream.ErrorUnknown, err)
		return fmt.Errorf("session: %w", err)
	}

	c.mu.Lock()
	peerCfg, host := c.config.peerConfig(), c.config.Host
	c.mu.Unlock()

	peer, err := webrtc.NewPeer(peerCfg, cred, c.logger)
	if err != nil {
		c.emitError(stream.ErrorUnknown, err)
		return fmt.Errorf("session: %w", err)
	}
	peer.OnICEStateChange(func(state string) {
		c.logger.With(map[string]interface{}{"state": state}).Debug("ice state changed")
		c.emitter.Emit(&stream.IceCandidateEvent{State: state})
	})

	signal, err := c.dial(host, signalPath, "signal")
	if err != nil {
		peer.Close()
		c.emitError(stream.ErrorUnknown, err)
		return err
	}
	result, err := c.dial(host, resultPath, "result")
	if err != nil {
		peer.Close()
		signal.Close()
		c.emitError(stream.ErrorUnknown, err)
		return err
	}

	c.mu.Lock()
	c.peer = peer
	c.signal = signal
	c.result = result
	c.mu.Unlock()

	now := time.Now()
	result.Emit(protocol.EventEnterSession, protocol.EnterSessionPayload{SessionID: c.sessionID, Timestamp: now})
	signal.Emit(protocol.EventEnterSession, protocol.EnterSessionPayload{Timestamp: now})

	c.logger.Info("connected")
	return nil
}

// LoadStream applies override to the configuration and attaches a video
// track to the peer. Samples written to the returned track are published
// once Publish succeeds.
func (c *Client) LoadStream(override Config) (*pion.TrackLocalStaticSample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peer == nil {
		return nil, ErrNotConnected
	}
	c.config = c.config.Merge(override)

	mime := mimeType(c.config.Codec)
	track, err := c.peer.AddVideoTrack(mime, c.sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	c.track = track

	c.emitter.Emit(&stream.LoadStreamEvent{TrackID: track.ID(), StreamID: track.StreamID(), MimeType: mime})
	return track, nil
}

// Publish negotiates the media session and starts decoding results. It is a
// no-op while already publishing.
func (c *Client) Publish(ctx context.Context) error {
	c.mu.Lock()
	if c.publishing {
		c.mu.Unlock()
		return nil
	}
	if c.peer == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if c.track == nil {
		c.mu.Unlock()
		return ErrNoTrack
	}
	deserializer, err := landmark.NewDeserializer(c.config.LandmarkConfig())
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("session: %w", err)
	}
	c.publishing = true
	peer, result, cfg := c.peer, c.result, c.config
	c.mu.Unlock()

	exchange := func(ctx context.Context, offer backend.SessionDescription) (*backend.SessionDescription, error) {
		return c.api.PostOffer(ctx, backend.OfferRequest{
			SessionID: c.sessionID,
			SDP:       offer.SDP,
			Type:      offer.Type,
			Processor: cfg.Processor,
			Model:     cfg.Model,
		})
	}
	if err := peer.Negotiate(ctx, "video", cfg.Codec, exchange); err != nil {
		c.mu.Lock()
		c.publishing = false
		c.mu.Unlock()
		c.emitError(stream.ErrorUnknown, err)
		return fmt.Errorf("session: %w", err)
	}

	if cfg.Debug {
		c.debug.Start(cfg.FrameRate, cfg.Width, cfg.Height)
	}

	if err := c.startDecoding(peer, result, deserializer); err != nil {
		return err
	}

	c.logger.With(map[string]interface{}{
		"codec":    cfg.Codec,
		"model":    cfg.Model,
		"filtered": deserializer.Filtered(),
	}).Info("publishing")
	return nil
}

// startDecoding subscribes deserializer to the result stream unless Stop
// tore down peer while it was negotiating.
func (c *Client) startDecoding(peer *webrtc.Peer, result *socket.Client, deserializer *landmark.Deserializer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.publishing || c.peer == nil || c.peer != peer {
		return ErrNotConnected
	}
	c.deserializer = deserializer
	c.startedAt = time.Now()
	result.OnBinary(c.handleStreamOutput)
	return nil
}

// Stop tears down the peer connection and drops the session's filter state.
// A new Connect is required before publishing again.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.publishing {
		c.mu.Unlock()
		return
	}
	c.publishing = false
	peer, signal, result, debug := c.peer, c.signal, c.result, c.config.Debug
	c.peer = nil
	c.track = nil
	c.deserializer = nil
	result.OnBinary(nil)
	c.mu.Unlock()

	if err := peer.Close(); err != nil {
		c.logger.With(map[string]interface{}{"error": err}).Warn("failed to close peer")
	}
	signal.Emit(protocol.EventLeaveSession, protocol.LeaveSessionPayload{SessionID: c.sessionID})

	if debug {
		result.Emit(protocol.EventDebugReport, c.debug.Snapshot())
	}
	c.logger.Info("stopped")
}

// Close stops publishing and disconnects both sockets.
func (c *Client) Close() {
	c.Stop()

	c.mu.Lock()
	peer, signal, result := c.peer, c.signal, c.result
	c.peer = nil
	c.signal = nil
	c.result = nil
	c.mu.Unlock()

	if peer != nil {
		peer.Close()
	}
	if signal != nil {
		signal.Close()
	}
	if result != nil {
		result.Close()
	}
	c.cancel()
}

// Done is closed when the result socket drops or the client is closed.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	result := c.result
	c.mu.Unlock()
	if result == nil {
		return c.ctx.Done()
	}
	return result.Done()
}

// DebugData returns the telemetry collected since Publish.
func (c *Client) DebugData() telemetry.DebugDataSet {
	return c.debug.Snapshot()
}

// handleStreamOutput runs on the result socket's read goroutine, so frames
// reach the deserializer in arrival order.
func (c *Client) handleStreamOutput(data []byte) {
	resp, err := protocol.DecodeStreamResponse(data)
	if err != nil {
		c.logger.With(map[string]interface{}{"error": err}).Warn("dropping undecodable frame")
		c.emitError(stream.ErrorDecode, err)
		return
	}

	c.mu.Lock()
	deserializer, startedAt, debug := c.deserializer, c.startedAt, c.config.Debug
	c.mu.Unlock()
	if deserializer == nil {
		return
	}

	set, err := deserializer.Deserialize(resp.Result, frameTimestamp(resp, startedAt))
	if err != nil {
		c.logger.With(map[string]interface{}{"error": err, "sequence": resp.Sequence}).Warn("dropping malformed frame")
		c.emitError(stream.ErrorDecode, err)
		return
	}

	if debug {
		c.debug.Add(resp)
	}
	c.emitter.Emit(&stream.InferenceResultEvent{
		Landmarks: set,
		Sequence:  resp.Sequence,
		FPS:       resp.FPS,
		Response:  resp,
	})
}

func (c *Client) emitError(message stream.ErrorMessage, err error) {
	c.emitter.Emit(&stream.ErrorEvent{Message: message, Err: err})
}

func (c *Client) dial(host, path, name string) (*socket.Client, error) {
	u, err := socketURL(host, path)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	client := socket.NewClient(socket.ClientConfig{URL: u, Name: name, Logger: c.logger})
	if err := client.Connect(c.ctx); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return client, nil
}

// frameTimestamp is the capture time of the frame in seconds, taken from the
// first pipeline stage, or the local receive time when the backend sent none.
func frameTimestamp(resp *protocol.StreamResponse, startedAt time.Time) float64 {
	if len(resp.Timestamp) > 0 {
		return float64(resp.Timestamp[0]) / 1000
	}
	return time.Since(startedAt).Seconds()
}

func socketURL(host, path string) (string, error) {
	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("parse host %q: %w", host, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported host scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

// mimeType maps an rtpmap codec such as "H264/90000" to its video MIME type.
func mimeType(codec string) string {
	name, _, _ := strings.Cut(codec, "/")
	return "video/" + name
}
