// Package profiling starts continuous profiling and labels background work so
// sweep phases show up as separate flame graphs.
package profiling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/getmentor/getmentor-sessions/config"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

const defaultAppName = "getmentor-sessions"

var defaultProfileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileGoroutines,
	pyroscope.ProfileMutexCount,
	pyroscope.ProfileMutexDuration,
	pyroscope.ProfileBlockCount,
	pyroscope.ProfileBlockDuration,
}

var profileTypeMap = map[string][]pyroscope.ProfileType{
	"cpu":           {pyroscope.ProfileCPU},
	"alloc_space":   {pyroscope.ProfileAllocSpace},
	"alloc_objects": {pyroscope.ProfileAllocObjects},
	"goroutines":    {pyroscope.ProfileGoroutines},
	"mutex":         {pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration},
	"block":         {pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration},
}

// InitProfiler starts the pyroscope agent when profiling is enabled. The
// returned func stops it and is safe to call when profiling is off.
func InitProfiler(cfg *config.Config) (func(), error) {
	p := cfg.Profiling
	if !p.Enabled {
		logger.Info("Continuous profiling disabled")
		return func() {}, nil
	}

	endpoint := strings.TrimSpace(p.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("profiling endpoint is required when profiling is enabled")
	}
	uploadEvery := time.Duration(p.UploadIntervalSeconds) * time.Second
	if uploadEvery <= 0 {
		uploadEvery = 15 * time.Second
	}

	profileTypes, err := parseProfileTypes(p.SampleTypes)
	if err != nil {
		return nil, err
	}

	appName := strings.TrimSpace(p.AppName)
	if appName == "" {
		appName = defaultAppName
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   endpoint,
		UploadRate:      uploadEvery,
		ProfileTypes:    profileTypes,
		Tags:            buildTags(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start profiler: %w", err)
	}

	logger.Info("Continuous profiling initialized",
		zap.String("application_name", appName),
		zap.String("endpoint", endpoint),
		zap.String("sample_types", p.SampleTypes),
		zap.Duration("upload_interval", uploadEvery),
	)

	return func() {
		if stopErr := profiler.Stop(); stopErr != nil {
			logger.Error("Failed to stop profiler", zap.Error(stopErr))
		}
	}, nil
}

// Phase runs fn with the sweep_phase profiling label set. Without a running
// profiler the label is simply ignored.
func Phase(ctx context.Context, phase string, fn func(ctx context.Context)) {
	pyroscope.TagWrapper(ctx, pyroscope.Labels("sweep_phase", phase), fn)
}

func parseProfileTypes(value string) ([]pyroscope.ProfileType, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultProfileTypes, nil
	}

	types := make([]pyroscope.ProfileType, 0, len(defaultProfileTypes))
	seen := make(map[pyroscope.ProfileType]bool, len(defaultProfileTypes))

	for _, raw := range strings.Split(value, ",") {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key == "" {
			continue
		}
		mapped, ok := profileTypeMap[key]
		if !ok {
			return nil, fmt.Errorf("unsupported O11Y_PROFILING_SAMPLE_TYPES value: %q", key)
		}
		for _, t := range mapped {
			if !seen[t] {
				types = append(types, t)
				seen[t] = true
			}
		}
	}

	if len(types) == 0 {
		return defaultProfileTypes, nil
	}
	return types, nil
}

// buildTags returns the static labels attached to every profile; empty values are dropped
func buildTags(cfg *config.Config) map[string]string {
	tags := map[string]string{
		"service_name":    cfg.Observability.ServiceName,
		"namespace":       cfg.Observability.ServiceNamespace,
		"environment":     cfg.Server.AppEnv,
		"service_version": cfg.Observability.ServiceVersion,
		"instance":        cfg.Observability.ServiceInstanceID,
	}
	for k, v := range tags {
		if strings.TrimSpace(v) == "" {
			delete(tags, k)
		}
	}
	return tags
}
