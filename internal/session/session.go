// Package session keeps per-browser screen state.
package session

import (
	"MedsetuPortal/internal/events"
	"MedsetuPortal/internal/screens"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

const CookieName = "medsetu_session"

type Session struct {
	ID         string
	Translator *screens.Translator
	Directory  *screens.Directory
	Doctors    *screens.DoctorDirectory

	lastSeen atomic.Int64
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

type Store struct {
	api    screens.API
	events events.Publisher
	ttl    time.Duration
	now    func() time.Time

	sessions sync.Map
	count    atomic.Int64
}

func NewStore(api screens.API, pub events.Publisher, ttl time.Duration) *Store {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Store{
		api:    api,
		events: pub,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get returns the session with id, creating a fresh one under a new id when
// id is unknown or empty.
func (st *Store) Get(id string) (*Session, bool) {
	if s, ok := st.Lookup(id); ok {
		return s, false
	}
	return st.New(), true
}

// Lookup returns the live session with id without creating one.
func (st *Store) Lookup(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := st.sessions.Load(id)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	s.touch(st.now())
	return s, true
}

func (st *Store) New() *Session {
	id := uuid.New().String()
	s := &Session{
		ID:         id,
		Translator: screens.NewTranslator(st.api, st.events, id),
		Directory:  screens.NewDirectory(st.api, st.events, id),
		Doctors:    screens.NewDoctorDirectory(st.api),
	}
	s.touch(st.now())

	st.sessions.Store(id, s)
	st.count.Add(1)
	return s
}

func (st *Store) Len() int {
	return int(st.count.Load())
}

// Sweep drops sessions idle for longer than the store's ttl.
func (st *Store) Sweep() int {
	cutoff := st.now().Add(-st.ttl)
	removed := 0

	st.sessions.Range(func(key, value any) bool {
		if value.(*Session).LastSeen().Before(cutoff) {
			if _, loaded := st.sessions.LoadAndDelete(key); loaded {
				st.count.Add(-1)
				removed++
			}
		}
		return true
	})

	return removed
}

// Run sweeps idle sessions every interval until ctx is done.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				slog.Debug("evicted idle sessions", slog.Int("count", n), slog.Int("active", st.Len()))
			}
		case <-ctx.Done():
			slog.Info("closing session sweeper")
			return
		}
	}
}
