package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// RegionConfig configures one named cache partition
type RegionConfig struct {
	Name       string
	TTL        time.Duration
	MaxEntries int
}

// Stats is a point-in-time snapshot of a region's counters
type Stats struct {
	Region           string        `json:"region"`
	TTL              time.Duration `json:"ttl"`
	MaxEntries       int           `json:"maxEntries"`
	Size             int           `json:"size"`
	Hits             uint64        `json:"hits"`
	Misses           uint64        `json:"misses"`
	SizeEvictions    uint64        `json:"sizeEvictions"`
	ExpiredEvictions uint64        `json:"expiredEvictions"`
}

// HitRatio returns hits / (hits + misses), or 0 when the region was never read
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry struct {
	value     any
	writtenAt time.Time
}

// region is an LRU bounded by MaxEntries whose entries also expire once TTL has elapsed.
// gen is bumped on every invalidation so in-flight loads can detect they are stale.
type region struct {
	cfg RegionConfig

	mu     sync.Mutex
	lru    *simplelru.LRU[string, entry]
	gen    uint64
	hits   uint64
	misses uint64
	sizeEv uint64
	ageEv  uint64
}

func newRegion(cfg RegionConfig) (*region, error) {
	lru, err := simplelru.NewLRU[string, entry](cfg.MaxEntries, nil)
	if err != nil {
		return nil, err
	}
	return &region{cfg: cfg, lru: lru}, nil
}

func (r *region) expired(e entry, now time.Time) bool {
	return r.cfg.TTL > 0 && !now.Before(e.writtenAt.Add(r.cfg.TTL))
}

func (r *region) get(key string, now time.Time) (any, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lru.Get(key)
	if !ok {
		r.misses++
		return nil, false, false
	}
	if r.expired(e, now) {
		r.lru.Remove(key)
		r.ageEv++
		r.misses++
		return nil, false, true
	}
	r.hits++
	return e.value, true, false
}

// put stores value. When gen is non-nil the write is dropped if the region was
// invalidated since the caller captured *gen.
func (r *region) put(key string, value any, now time.Time, gen *uint64) (stored, evicted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != nil && *gen != r.gen {
		return false, false
	}
	evicted = r.lru.Add(key, entry{value: value, writtenAt: now})
	if evicted {
		r.sizeEv++
	}
	return true, evicted
}

func (r *region) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

func (r *region) invalidate(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	return r.lru.Remove(key)
}

func (r *region) invalidatePrefix(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++

	removed := 0
	for _, key := range r.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			if r.lru.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

func (r *region) invalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.lru.Purge()
}

// purgeExpired removes every entry past its TTL and returns how many were dropped
func (r *region) purgeExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.TTL <= 0 {
		return 0
	}
	purged := 0
	for _, key := range r.lru.Keys() {
		e, ok := r.lru.Peek(key)
		if ok && r.expired(e, now) {
			r.lru.Remove(key)
			purged++
		}
	}
	r.ageEv += uint64(purged)
	return purged
}

func (r *region) stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Region:           r.cfg.Name,
		TTL:              r.cfg.TTL,
		MaxEntries:       r.cfg.MaxEntries,
		Size:             r.lru.Len(),
		Hits:             r.hits,
		Misses:           r.misses,
		SizeEvictions:    r.sizeEv,
		ExpiredEvictions: r.ageEv,
	}
}
