package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/getmentor/getmentor-sessions/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// redactedQueryParams never reach the logs
var redactedQueryParams = map[string]bool{
	"token": true, "password": true, "secret": true, "key": true,
	"auth": true, "api_key": true, "apikey": true,
}

// entityParams are route params worth a dedicated log field and span
// attribute. A bare :id is named after the collection it belongs to.
var entityParams = map[string]string{
	"mentorId": "mentor_id",
	"userId":   "subject_user_id",
}

// idFieldName turns "/api/v1/sessions/:id/cancel" into "session_id"
func idFieldName(route string) string {
	before, _, found := strings.Cut(route, "/:id")
	if !found {
		return "entity_id"
	}
	collection := before[strings.LastIndex(before, "/")+1:]
	return strings.TrimSuffix(collection, "s") + "_id"
}

// ObservabilityMiddleware records request metrics and writes one access log
// line per request. Metrics are labelled by route template, never by raw path.
func ObservabilityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// the route is unknown until gin has matched it
		metrics.ActiveRequests.WithLabelValues(method).Inc()
		defer metrics.ActiveRequests.WithLabelValues(method).Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		duration := metrics.MeasureDuration(start)
		status := c.Writer.Status()
		statusStr := strconv.Itoa(status)

		metrics.HTTPRequestDuration.WithLabelValues(method, route, statusStr).Observe(duration)
		metrics.HTTPRequestTotal.WithLabelValues(method, route, statusStr).Inc()

		fields := requestFields(c)
		if status >= 400 {
			fields = append(fields, errorFields(c)...)
		}
		logger.LogHTTPRequest(c.Request.Context(), method, c.Request.URL.Path, status, duration, fields...)
	}
}

// requestFields describes who made the request and which entity it touched.
// Entity ids are copied onto the active span as well.
func requestFields(c *gin.Context) []zap.Field {
	fields := []zap.Field{
		zap.String("client_ip", c.ClientIP()),
		zap.String("user_agent", c.Request.UserAgent()),
		zap.Int("response_size", c.Writer.Size()),
	}
	if session, err := GetUserSession(c); err == nil {
		fields = append(fields, zap.String("user_id", session.UserID), zap.String("role", session.Role))
	}

	span := trace.SpanFromContext(c.Request.Context())
	for _, p := range c.Params {
		name, ok := entityParams[p.Key]
		if p.Key == "id" {
			name, ok = idFieldName(c.FullPath()), true
		}
		if !ok || p.Value == "" {
			continue
		}
		fields = append(fields, zap.String(name, p.Value))
		span.SetAttributes(attribute.String(name, p.Value))
	}
	return fields
}

func errorFields(c *gin.Context) []zap.Field {
	var fields []zap.Field

	if query := c.Request.URL.Query(); len(query) > 0 {
		sanitized := make(map[string]string, len(query))
		for k, v := range query {
			if !redactedQueryParams[strings.ToLower(k)] && len(v) > 0 {
				sanitized[k] = v[0]
			}
		}
		if len(sanitized) > 0 {
			fields = append(fields, zap.Any("query_params", sanitized))
		}
	}
	if len(c.Errors) > 0 {
		fields = append(fields, zap.String("error", c.Errors.String()))
	}
	return fields
}
