package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getmentor/getmentor-sessions/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestIDFieldName(t *testing.T) {
	tests := []struct {
		route string
		want  string
	}{
		{"/api/v1/sessions/:id", "session_id"},
		{"/api/v1/sessions/:id/cancel", "session_id"},
		{"/api/v1/availability/slots/:id/deactivate", "slot_id"},
		{"/api/internal/reviews/:id/moderation", "review_id"},
		{"/api/v1/mentors/:mentorId/availability", "entity_id"},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.want, idFieldName(tt.route))
		})
	}
}

func TestObservabilityMiddleware_LabelsByRouteTemplate(t *testing.T) {
	router := gin.New()
	router.Use(ObservabilityMiddleware())
	router.GET("/api/v1/sessions/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	counter := metrics.HTTPRequestTotal.WithLabelValues(http.MethodGet, "/api/v1/sessions/:id", "404")
	before := counterValue(t, counter)

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"?token=secret&page=2", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	}

	assert.InDelta(t, before+2, counterValue(t, counter), 1e-9)
}

func TestObservabilityMiddleware_UnmatchedRoute(t *testing.T) {
	router := gin.New()
	router.Use(ObservabilityMiddleware())

	counter := metrics.HTTPRequestTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before := counterValue(t, counter)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	assert.InDelta(t, before+1, counterValue(t, counter), 1e-9)
}
