// Package httpclient builds the traced HTTP clients used for outbound calls to
// the identity service, the notification service and trigger hooks.
package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultTimeout = 30 * time.Second
	UserAgent      = "getmentor-sessions"
)

// Client is the subset of *http.Client the collaborators need
type Client interface {
	Get(url string) (*http.Response, error)
	Do(req *http.Request) (*http.Response, error)
}

// NewStandardClient returns a client with DefaultTimeout
func NewStandardClient() Client {
	return NewClientWithTimeout(DefaultTimeout)
}

// NewClientWithTimeout returns a client that propagates trace context, sets
// default headers and gives up on a request after timeout.
func NewClientWithTimeout(timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(&headerTransport{next: http.DefaultTransport}),
	}
}

// headerTransport fills in User-Agent and Accept unless the request set them
type headerTransport struct {
	next http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" && req.Header.Get("Accept") != "" {
		return t.next.RoundTrip(req)
	}
	// a RoundTripper must not modify the caller's request
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	return t.next.RoundTrip(req)
}
