package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/getmentor/getmentor-sessions/pkg/clock"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/getmentor/getmentor-sessions/pkg/metrics"
	"go.uber.org/zap"
)

// Region names
const (
	RegionProfiles     = "profiles"
	RegionSessions     = "sessions"
	RegionAvailability = "availability"
	RegionReviews      = "reviews"
)

// Manager owns the named cache regions. Values are disposable copies of
// authoritative data; every writer of that data must invalidate here.
type Manager struct {
	clock   clock.Clock
	regions map[string]*region

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewManager creates a manager with one region per config
func NewManager(clk clock.Clock, configs ...RegionConfig) (*Manager, error) {
	if clk == nil {
		clk = clock.Real()
	}

	m := &Manager{
		clock:   clk,
		regions: make(map[string]*region, len(configs)),
		stop:    make(chan struct{}),
	}

	for _, cfg := range configs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("cache region name is required")
		}
		if _, exists := m.regions[cfg.Name]; exists {
			return nil, fmt.Errorf("duplicate cache region %q", cfg.Name)
		}
		r, err := newRegion(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache region %q: %w", cfg.Name, err)
		}
		m.regions[cfg.Name] = r
	}

	return m, nil
}

func (m *Manager) region(name string) *region {
	r, ok := m.regions[name]
	if !ok {
		logger.Warn("Unknown cache region", zap.String("region", name))
	}
	return r
}

// Get returns the cached value for key. A miss is never an error.
func (m *Manager) Get(regionName, key string) (any, bool) {
	r := m.region(regionName)
	if r == nil {
		return nil, false
	}

	value, ok, expired := r.get(key, m.clock.Now())
	if expired {
		metrics.CacheEvictions.WithLabelValues(regionName, "expired").Inc()
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues(regionName).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(regionName).Inc()
	return value, true
}

// Put stores value under key
func (m *Manager) Put(regionName, key string, value any) {
	m.put(regionName, key, value, nil)
}

func (m *Manager) put(regionName, key string, value any, gen *uint64) bool {
	r := m.region(regionName)
	if r == nil {
		return false
	}

	stored, evicted := r.put(key, value, m.clock.Now(), gen)
	if evicted {
		metrics.CacheEvictions.WithLabelValues(regionName, "size").Inc()
	}
	if stored {
		metrics.CacheSize.WithLabelValues(regionName).Set(float64(r.stats().Size))
	}
	return stored
}

// Invalidate drops a single key
func (m *Manager) Invalidate(regionName, key string) {
	if r := m.region(regionName); r != nil {
		r.invalidate(key)
	}
}

// InvalidatePrefix drops every key starting with prefix
func (m *Manager) InvalidatePrefix(regionName, prefix string) {
	if r := m.region(regionName); r != nil {
		removed := r.invalidatePrefix(prefix)
		logger.Debug("Cache prefix invalidated",
			zap.String("region", regionName),
			zap.String("prefix", prefix),
			zap.Int("removed", removed))
	}
}

// InvalidateAll empties a region
func (m *Manager) InvalidateAll(regionName string) {
	if r := m.region(regionName); r != nil {
		r.invalidateAll()
		metrics.CacheSize.WithLabelValues(regionName).Set(0)
	}
}

// Generation returns the region's invalidation counter
func (m *Manager) Generation(regionName string) uint64 {
	if r := m.region(regionName); r != nil {
		return r.generation()
	}
	return 0
}

// PutIfGeneration stores value only if the region was not invalidated since gen was read
func (m *Manager) PutIfGeneration(regionName, key string, value any, gen uint64) bool {
	return m.put(regionName, key, value, &gen)
}

// PurgeExpired removes expired entries from every region
func (m *Manager) PurgeExpired() int {
	now := m.clock.Now()
	total := 0
	for name, r := range m.regions {
		purged := r.purgeExpired(now)
		if purged > 0 {
			metrics.CacheEvictions.WithLabelValues(name, "expired").Add(float64(purged))
			metrics.CacheSize.WithLabelValues(name).Set(float64(r.stats().Size))
		}
		total += purged
	}
	return total
}

// Stats returns a snapshot for every region, sorted by name
func (m *Manager) Stats() []Stats {
	stats := make([]Stats, 0, len(m.regions))
	for _, r := range m.regions {
		stats = append(stats, r.stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Region < stats[j].Region })
	return stats
}

// Start runs the expiry janitor and the periodic stats logger until Stop or ctx is done
func (m *Manager) Start(ctx context.Context, janitorInterval, statsInterval time.Duration) {
	if janitorInterval > 0 {
		m.wg.Add(1)
		go m.every(ctx, janitorInterval, func() {
			if purged := m.PurgeExpired(); purged > 0 {
				logger.Debug("Cache janitor purged expired entries", zap.Int("count", purged))
			}
		})
	}
	if statsInterval > 0 {
		m.wg.Add(1)
		go m.every(ctx, statsInterval, m.LogStats)
	}
}

// Stop halts background goroutines and waits for them to exit
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

func (m *Manager) every(ctx context.Context, interval time.Duration, fn func()) {
	defer m.wg.Done()

	ticker := m.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			fn()
		}
	}
}

// LogStats writes one log line per region
func (m *Manager) LogStats() {
	for _, s := range m.Stats() {
		logger.Info("Cache region stats",
			zap.String("region", s.Region),
			zap.Int("size", s.Size),
			zap.Int("max_entries", s.MaxEntries),
			zap.Uint64("hits", s.Hits),
			zap.Uint64("misses", s.Misses),
			zap.Float64("hit_ratio", s.HitRatio()),
			zap.Uint64("size_evictions", s.SizeEvictions),
			zap.Uint64("expired_evictions", s.ExpiredEvictions))
	}
}
