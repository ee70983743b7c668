package gradeedit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/gradedesk/core"
)

var ErrSessionNotFound = errors.New("edit session not found")

// Store keeps the live edit sessions in memory. Sessions idle for longer than the idle timeout are expired.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	backend     Backend
	log         core.Logger
	idleTimeout time.Duration
	now         func() time.Time // mockable
}

func NewStore(backend Backend, log core.Logger, idleTimeout time.Duration) *Store {
	return &Store{
		sessions:    make(map[string]*Session),
		backend:     backend,
		log:         log,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Create opens a session owned by ownerID.
func (st *Store) Create(ctx context.Context, ownerID string, scope Scope) (*Session, error) {
	sess, err := NewSession(ctx, uuid.NewString(), ownerID, scope, st.backend, st.log)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()
	return sess, nil
}

// Get returns the session id of ownerID. Another principal's session is reported as not found.
func (st *Store) Get(id, ownerID string) (*Session, error) {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok || sess.OwnerID != ownerID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (st *Store) Delete(id, ownerID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	if !ok || sess.OwnerID != ownerID {
		return ErrSessionNotFound
	}
	delete(st.sessions, id)
	return nil
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Expire removes idle sessions and returns how many were removed.
func (st *Store) Expire() int {
	if st.idleTimeout <= 0 {
		return 0
	}
	cutoff := st.now().Add(-st.idleTimeout)

	// a committing session holds its lock, so idleness is read outside the store lock
	st.mu.RLock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		sessions = append(sessions, sess)
	}
	st.mu.RUnlock()

	var idle []string
	for _, sess := range sessions {
		if sess.LastUsed().Before(cutoff) {
			idle = append(idle, sess.ID)
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, id := range idle {
		delete(st.sessions, id)
	}
	return len(idle)
}

// Run expires idle sessions every interval until ctx is done.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Expire(); n > 0 && st.log != nil {
				st.log.Debug("expired idle edit sessions", map[string]interface{}{"count": n})
			}
		}
	}
}
