package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/getmentor/getmentor-sessions/pkg/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	var received Message
	status := http.StatusAccepted

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/send", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(status)
	}))
	defer server.Close()

	client := NewClient(server.URL, httpclient.NewStandardClient())
	msg := Message{
		RecipientID: "u1",
		Channel:     "email",
		TemplateID:  "session_reminder_1h",
		Payload:     map[string]any{"sessionId": "s1"},
	}

	require.NoError(t, client.Send(context.Background(), msg))
	assert.Equal(t, "u1", received.RecipientID)
	assert.Equal(t, "session_reminder_1h", received.TemplateID)
	assert.Equal(t, "s1", received.Payload["sessionId"])

	status = http.StatusServiceUnavailable
	err := client.Send(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
}
