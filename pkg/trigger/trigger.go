package trigger

import (
	"net/url"

	"github.com/getmentor/getmentor-sessions/pkg/httpclient"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"go.uber.org/zap"
)

// Event names used in trigger logs
const (
	EventSessionBooked    = "session_booked"
	EventSessionCancelled = "session_cancelled"
	EventReviewCreated    = "review_created"
)

// CallAsync calls triggerURL with the record id appended, in the background.
// Downstream automations (emails, chat posts) hang off these hooks.
// Failures are logged and never reach the caller.
func CallAsync(event, triggerURL, recordID string, httpClient httpclient.Client) {
	if triggerURL == "" {
		return
	}

	go func() {
		targetURL := triggerURL + url.QueryEscape(recordID)

		resp, err := httpClient.Get(targetURL)
		if err != nil {
			logger.Error("Failed to call trigger URL",
				zap.Error(err),
				zap.String("event", event),
				zap.String("url", targetURL),
				zap.String("record_id", recordID))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Info("Trigger URL called successfully",
				zap.String("event", event),
				zap.String("record_id", recordID),
				zap.Int("status_code", resp.StatusCode))
		} else {
			logger.Warn("Trigger URL returned non-success status",
				zap.String("event", event),
				zap.String("url", targetURL),
				zap.String("record_id", recordID),
				zap.Int("status_code", resp.StatusCode))
		}
	}()
}
