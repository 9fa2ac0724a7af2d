package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/getmentor/getmentor-sessions/pkg/fallback"
	"github.com/getmentor/getmentor-sessions/pkg/httpclient"
)

// Profile is the identity service's view of a user
type Profile struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
}

// Client looks up users in the identity service
type Client struct {
	baseURL    string
	httpClient httpclient.Client
}

// NewClient creates a new identity client
func NewClient(baseURL string, httpClient httpclient.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// GetUser fetches a user profile. An unknown user is returned as a permanent
// not-found error; every other failure is transient.
func (c *Client) GetUser(ctx context.Context, userID string) (*Profile, error) {
	endpoint := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fallback.Permanent(fmt.Errorf("failed to build identity request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.UpstreamError("identity", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fallback.Permanent(apperrors.NotFoundError("user"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, apperrors.UpstreamError("identity", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, apperrors.UpstreamError("identity", fmt.Errorf("failed to decode profile: %w", err))
	}
	if profile.ID == "" {
		profile.ID = userID
	}

	return &profile, nil
}
