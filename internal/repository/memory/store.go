// Package memory is an in-process implementation of repository.Store used by
// tests and by offline mode.
package memory

import (
	"context"
	"sync"

	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/repository"
)

// Store keeps all entities in maps guarded by one RWMutex. Mentor locks are
// separate keyed mutexes so unrelated mentors never wait on each other.
type Store struct {
	mu sync.RWMutex

	slots        map[string]*models.AvailabilitySlot
	sessions     map[string]*models.Session
	reminders    map[string]*models.Reminder
	reminderKeys map[string]string // session|offset -> reminder id
	reviews      map[string]*models.Review
	reviewKeys   map[string]string // reviewer|session -> review id

	mentorLocks keyedMutex

	slotRepo     *slotRepository
	sessionRepo  *sessionRepository
	reminderRepo *reminderRepository
	reviewRepo   *reviewRepository
}

var _ repository.Store = (*Store)(nil)

// NewStore creates an empty store
func NewStore() *Store {
	s := &Store{
		slots:        make(map[string]*models.AvailabilitySlot),
		sessions:     make(map[string]*models.Session),
		reminders:    make(map[string]*models.Reminder),
		reminderKeys: make(map[string]string),
		reviews:      make(map[string]*models.Review),
		reviewKeys:   make(map[string]string),
		mentorLocks:  keyedMutex{locks: make(map[string]*refLock)},
	}
	s.slotRepo = &slotRepository{s: s}
	s.sessionRepo = &sessionRepository{s: s}
	s.reminderRepo = &reminderRepository{s: s}
	s.reviewRepo = &reviewRepository{s: s}
	return s
}

func (s *Store) Slots() repository.SlotRepository         { return s.slotRepo }
func (s *Store) Sessions() repository.SessionRepository   { return s.sessionRepo }
func (s *Store) Reminders() repository.ReminderRepository { return s.reminderRepo }
func (s *Store) Reviews() repository.ReviewRepository     { return s.reviewRepo }

// Ping always succeeds
func (s *Store) Ping(context.Context) error { return nil }

type txKey struct{}

// undoLog collects compensating actions for writes made inside a transaction
type undoLog struct {
	ops []func()
}

// InTx runs fn and rolls back every write it made if fn fails
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*undoLog); ok {
		return fn(ctx)
	}

	log := &undoLog{}
	if err := fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		s.mu.Lock()
		for i := len(log.ops) - 1; i >= 0; i-- {
			log.ops[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// WithMentorLock holds the mentor's mutex for the duration of a transaction
func (s *Store) WithMentorLock(ctx context.Context, mentorID string, fn func(ctx context.Context) error) error {
	unlock := s.mentorLocks.Lock(mentorID)
	defer unlock()
	return s.InTx(ctx, fn)
}

// onRollback registers undo for the transaction in ctx. Must be called with s.mu held.
func onRollback(ctx context.Context, undo func()) {
	if log, ok := ctx.Value(txKey{}).(*undoLog); ok {
		log.ops = append(log.ops, undo)
	}
}

type refLock struct {
	sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds or waits on it
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
