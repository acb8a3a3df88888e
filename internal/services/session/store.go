// Package session keeps one dashboard state per browser. State lives only in
// memory and is dropped after a period of inactivity.
package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"salesdash/internal/models"
)

// ErrNoDataset is returned when a session has not uploaded a dataset yet
var ErrNoDataset = errors.New("no dataset uploaded")

// State is the immutable snapshot a session points at
type State struct {
	Dataset    *models.Dataset
	Categories []string
	LoadedAt   time.Time
}

// Session holds the current dataset of one browser
type Session struct {
	ID string

	state    atomic.Pointer[State]
	lastSeen atomic.Int64
}

// Snapshot returns the current state, or ErrNoDataset before the first upload
func (s *Session) Snapshot() (*State, error) {
	st := s.state.Load()
	if st == nil {
		return nil, ErrNoDataset
	}
	return st, nil
}

// Categories returns the category options of the current dataset
func (s *Session) Categories() []string {
	if st := s.state.Load(); st != nil {
		return st.Categories
	}
	return []string{}
}

// Replace swaps in a new dataset; readers see either the old or the new state
func (s *Session) Replace(ds *models.Dataset) *State {
	st := &State{
		Dataset:    ds,
		Categories: ds.Categories(),
		LoadedAt:   time.Now(),
	}
	s.state.Store(st)
	return st
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

// Cleaner is implemented by caches that drop expired entries on the cleanup tick
type Cleaner interface {
	CleanExpired() int
}

// Store manages sessions keyed by an opaque ID
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	log      zerolog.Logger
	cleaners []Cleaner

	stopCleanup chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once
}

// NewStore creates a session store; idle sessions expire after ttl
func NewStore(ttl time.Duration, log zerolog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		log:      log,
	}
}

// GetOrCreate returns the session for id, creating a fresh one if id is unknown or empty.
// The returned bool is true when a new session was created.
func (st *Store) GetOrCreate(id string) (*Session, bool) {
	now := time.Now()

	if id != "" {
		st.mu.RLock()
		s, ok := st.sessions[id]
		st.mu.RUnlock()
		if ok {
			s.touch(now)
			return s, false
		}
	}

	s := &Session{ID: uuid.NewString()}
	s.touch(now)

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	st.log.Debug().Str("session", s.ID).Msg("Created session")
	return s, true
}

// Get returns an existing session without creating one
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Len returns the number of live sessions
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many were removed
func (st *Store) Sweep(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, s := range st.sessions {
		if s.idleSince(now) > st.ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Register adds a cache to be cleaned alongside idle sessions. Call before StartCleanup.
func (st *Store) Register(c Cleaner) {
	st.cleaners = append(st.cleaners, c)
}

// StartCleanup begins periodic expiry of idle sessions
func (st *Store) StartCleanup(interval time.Duration) {
	st.stopCleanup = make(chan struct{})
	st.cleanupDone = make(chan struct{})
	go st.cleanup(interval)
}

func (st *Store) cleanup(interval time.Duration) {
	defer close(st.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if n := st.Sweep(now); n > 0 {
				st.log.Info().Int("expired", n).Int("active", st.Len()).Msg("Expired idle sessions")
			}
			cleaned := 0
			for _, c := range st.cleaners {
				cleaned += c.CleanExpired()
			}
			if cleaned > 0 {
				st.log.Debug().Int("entries", cleaned).Msg("Cleaned expired cache entries")
			}
		case <-st.stopCleanup:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine
func (st *Store) Stop() {
	st.stopOnce.Do(func() {
		if st.stopCleanup != nil {
			close(st.stopCleanup)
			<-st.cleanupDone
		}
	})
}
