package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/code", func(w http.ResponseWriter, r *http.Request) {
		var req codeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code != "open-sesame" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "granted", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/credential", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(TurnCredential{Username: "user", Credential: "pass"})
	})
	mux.HandleFunc("/api/offer", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err != nil || c.Value != "granted" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var req OfferRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "offer", req.Type)
		assert.Equal(t, ProcessorGPU, req.Processor)
		assert.Equal(t, []InferenceType{InferenceHolistic}, req.Model)
		json.NewEncoder(w).Encode(SessionDescription{Type: "answer", SDP: "v=0\r\n" + req.SessionID})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthorize(t *testing.T) {
	srv := newBackend(t)

	c := NewAPIClient(srv.URL)
	assert.ErrorIs(t, c.Authorize(context.Background(), "wrong"), ErrUnauthorized)
	assert.NoError(t, c.Authorize(context.Background(), "open-sesame"))
}

func TestFetchCredential(t *testing.T) {
	srv := newBackend(t)

	cred, err := NewAPIClient(srv.URL).FetchCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &TurnCredential{Username: "user", Credential: "pass"}, cred)
}

func TestPostOfferCarriesCookie(t *testing.T) {
	srv := newBackend(t)
	c := NewAPIClient(srv.URL + "/")
	offer := OfferRequest{
		SessionID: "abc",
		SDP:       "v=0",
		Type:      "offer",
		Processor: ProcessorGPU,
		Model:     []InferenceType{InferenceHolistic},
	}

	_, err := c.PostOffer(context.Background(), offer)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, c.Authorize(context.Background(), "open-sesame"))
	answer, err := c.PostOffer(context.Background(), offer)
	require.NoError(t, err)
	assert.Equal(t, "answer", answer.Type)
	assert.Equal(t, "v=0\r\nabc", answer.SDP)
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewAPIClient(srv.URL).FetchCredential(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "status 500")
}

func TestDefaultHost(t *testing.T) {
	assert.Equal(t, DefaultHost, NewAPIClient("").BaseURL())
}
