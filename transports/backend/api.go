// Package backend wraps the inference backend's REST API: access-code
// authorization, TURN credentials and the WebRTC offer/answer exchange.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// DefaultHost is the production backend.
const DefaultHost = "https://api.goodganglabs.xyz"

var (
	// ErrUnauthorized is returned when the backend rejects the access code.
	ErrUnauthorized = errors.New("backend: unauthorized")

	jsonAPI = sonic.ConfigStd
)

// InferenceType selects which landmark models the backend runs.
type InferenceType string

const (
	InferenceHolistic InferenceType = "Holistic"
	InferenceFace     InferenceType = "Face"
	InferencePose     InferenceType = "Pose"
	InferenceHand     InferenceType = "Hand"
)

// ProcessorType selects the backend inference device.
type ProcessorType string

const (
	ProcessorGPU ProcessorType = "GPU"
	ProcessorCPU ProcessorType = "CPU"
)

// TurnCredential is the response from GET /api/credential.
type TurnCredential struct {
	Username   string `json:"username"`
	Credential string `json:"credential"`
}

// SessionDescription is an SDP offer or answer.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// OfferRequest is the request body for POST /api/offer.
type OfferRequest struct {
	SessionID string          `json:"sessionId"`
	SDP       string          `json:"sdp"`
	Type      string          `json:"type"`
	Processor ProcessorType   `json:"processor"`
	Model     []InferenceType `json:"model"`
}

type codeRequest struct {
	Code string `json:"code"`
}

// APIClient talks to the backend. The authorization cookie set by Authorize
// is carried on every later call.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client.
func NewAPIClient(baseURL string) *APIClient {
	if baseURL == "" {
		baseURL = DefaultHost
	}
	jar, _ := cookiejar.New(nil)
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}
}

// BaseURL returns the host the client talks to.
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// Authorize submits the access code.
func (c *APIClient) Authorize(ctx context.Context, code string) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/code", codeRequest{Code: code})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", ErrUnauthorized, resp.StatusCode, string(respBody))
	}
	return nil
}

// FetchCredential retrieves TURN credentials for the peer connection.
func (c *APIClient) FetchCredential(ctx context.Context) (*TurnCredential, error) {
	var cred TurnCredential
	if err := c.call(ctx, http.MethodGet, "/api/credential", nil, &cred); err != nil {
		return nil, fmt.Errorf("fetch credential: %w", err)
	}
	return &cred, nil
}

// PostOffer sends the local offer and returns the backend's answer.
func (c *APIClient) PostOffer(ctx context.Context, offer OfferRequest) (*SessionDescription, error) {
	var answer SessionDescription
	if err := c.call(ctx, http.MethodPost, "/api/offer", offer, &answer); err != nil {
		return nil, fmt.Errorf("post offer: %w", err)
	}
	if answer.SDP == "" {
		return nil, fmt.Errorf("post offer: empty answer")
	}
	return &answer, nil
}

func (c *APIClient) call(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := jsonAPI.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := jsonAPI.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}
