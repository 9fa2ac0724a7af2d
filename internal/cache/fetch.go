package cache

import (
	"context"

	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"go.uber.org/zap"
)

// Lookup returns the typed value cached under key. A value of the wrong type is
// dropped and reported as a miss.
func Lookup[T any](m *Manager, regionName, key string) (T, bool) {
	var zero T

	raw, ok := m.Get(regionName, key)
	if !ok {
		return zero, false
	}

	value, ok := raw.(T)
	if !ok {
		logger.Error("Invalid cache data type",
			zap.String("region", regionName),
			zap.String("key", key))
		m.Invalidate(regionName, key)
		return zero, false
	}
	return value, true
}

// Fetch is a read-through lookup. On a miss it calls load and caches the result,
// unless the region was invalidated while load was running.
func Fetch[T any](ctx context.Context, m *Manager, regionName, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if value, ok := Lookup[T](m, regionName, key); ok {
		return value, nil
	}

	gen := m.Generation(regionName)

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	if !m.PutIfGeneration(regionName, key, value, gen) {
		logger.Debug("Discarded stale cache load",
			zap.String("region", regionName),
			zap.String("key", key))
	}
	return value, nil
}
