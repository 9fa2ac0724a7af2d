package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SetsDefaultHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp, err := NewStandardClient().Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, UserAgent, got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Accept"))
}

func TestClient_KeepsCallerHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/plain")

	resp, err := NewClientWithTimeout(time.Second).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "text/plain", got.Get("Accept"))
	assert.Equal(t, UserAgent, got.Get("User-Agent"))
	assert.Empty(t, req.Header.Get("User-Agent"), "caller's request is untouched")
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	_, err := NewClientWithTimeout(50 * time.Millisecond).Get(server.URL)
	assert.Error(t, err)
}
