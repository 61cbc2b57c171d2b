package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// sessionSweepInterval задаёт, как часто Save вычищает истёкшие сессии.
const sessionSweepInterval = time.Minute

type sessionRepositoryInMemory struct {
	mu        sync.RWMutex
	sessions  map[string]domain.Session
	now       func() time.Time
	lastSweep time.Time
}

// NewSessionRepository создаёт in-memory хранилище сессий.
func NewSessionRepository() domain.SessionRepository {
	return &sessionRepositoryInMemory{
		sessions: make(map[string]domain.Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Save сохраняет сессию. Не чаще раза в sessionSweepInterval заодно удаляет
// истёкшие сессии, токены которых больше не предъявлялись.
func (r *sessionRepositoryInMemory) Save(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= sessionSweepInterval {
		for token, stored := range r.sessions {
			if stored.Expired(now) {
				delete(r.sessions, token)
			}
		}
		r.lastSweep = now
	}
	r.sessions[session.Token] = session
	return nil
}

// Get возвращает сессию; истёкшая сессия удаляется и считается отсутствующей.
func (r *sessionRepositoryInMemory) Get(_ context.Context, token string) (domain.Session, error) {
	r.mu.RLock()
	session, ok := r.sessions[token]
	r.mu.RUnlock()

	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if session.Expired(r.now()) {
		r.mu.Lock()
		delete(r.sessions, token)
		r.mu.Unlock()
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (r *sessionRepositoryInMemory) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, token)
	return nil
}

var _ domain.SessionRepository = (*sessionRepositoryInMemory)(nil)
