package profiling

import (
	"context"
	"testing"

	"github.com/getmentor/getmentor-sessions/config"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	if err := logger.Initialize(logger.Config{Level: "debug", Environment: "development"}); err != nil {
		panic(err)
	}
}

func TestParseProfileTypes(t *testing.T) {
	got, err := parseProfileTypes("")
	require.NoError(t, err)
	assert.Equal(t, defaultProfileTypes, got)

	got, err = parseProfileTypes("cpu, mutex,cpu,")
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileMutexCount,
		pyroscope.ProfileMutexDuration,
	}, got)

	_, err = parseProfileTypes("cpu,unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported O11Y_PROFILING_SAMPLE_TYPES")
}

func TestBuildTags(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{AppEnv: "production"},
		Observability: config.ObservabilityConfig{
			ServiceName:      "getmentor-sessions",
			ServiceNamespace: "getmentor-dev",
			ServiceVersion:   "2.0.0",
		},
	}

	assert.Equal(t, map[string]string{
		"service_name":    "getmentor-sessions",
		"namespace":       "getmentor-dev",
		"environment":     "production",
		"service_version": "2.0.0",
	}, buildTags(cfg))
}

func TestInitProfiler_Disabled(t *testing.T) {
	stop, err := InitProfiler(&config.Config{})
	require.NoError(t, err)
	assert.NotPanics(t, stop)
}

func TestInitProfiler_RequiresEndpoint(t *testing.T) {
	_, err := InitProfiler(&config.Config{Profiling: config.ProfilingConfig{Enabled: true}})
	assert.Error(t, err)
}

func TestPhase_RunsCallback(t *testing.T) {
	ran := false
	Phase(context.Background(), "dispatch", func(context.Context) { ran = true })
	assert.True(t, ran)
}
