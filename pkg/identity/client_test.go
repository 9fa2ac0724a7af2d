package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/getmentor/getmentor-sessions/pkg/fallback"
	"github.com/getmentor/getmentor-sessions/pkg/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/u1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"u1","role":"mentor","displayName":"Ada"}`))
		case "/users/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", httpclient.NewStandardClient())

	t.Run("found", func(t *testing.T) {
		profile, err := client.GetUser(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", profile.DisplayName)
		assert.Equal(t, "mentor", profile.Role)
	})

	t.Run("not found is permanent", func(t *testing.T) {
		_, err := client.GetUser(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, fallback.IsPermanent(err))
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("server error is transient", func(t *testing.T) {
		_, err := client.GetUser(context.Background(), "boom")
		require.Error(t, err)
		assert.False(t, fallback.IsPermanent(err))
		assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
	})
}
