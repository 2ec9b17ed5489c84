package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/domain"
)

// ControllerFactory builds an uninitialized controller.
type ControllerFactory func() *OrderController

type registryEntry struct {
	ctrl      *OrderController
	expiresAt time.Time
}

// SessionRegistry keeps one OrderController per signed-in session. Sessions
// are disposed on sign-out, on shutdown, or by Sweep once they expire.
type SessionRegistry struct {
	newController ControllerFactory
	log           *zap.Logger
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]registryEntry
}

// NewSessionRegistry creates a new SessionRegistry.
func NewSessionRegistry(newController ControllerFactory, log *zap.Logger) *SessionRegistry {
	return &SessionRegistry{
		newController: newController,
		log:           log,
		now:           time.Now,
		sessions:      make(map[string]registryEntry),
	}
}

// Open returns the session's controller, initializing and subscribing a new
// one if none is open yet. expiresAt is when the session stops being valid;
// the zero time means it never expires on its own.
func (r *SessionRegistry) Open(ctx context.Context, sessionID string, identity domain.Identity, expiresAt time.Time) (*OrderController, error) {
	if ctrl, ok := r.Get(sessionID); ok {
		return ctrl, nil
	}

	ctrl := r.newController()
	if err := ctrl.Initialize(ctx, identity); err != nil {
		ctrl.Close()
		return nil, err
	}
	if err := ctrl.Subscribe(); err != nil {
		ctrl.Close()
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.sessions[sessionID]; ok {
		r.mu.Unlock()
		// Another request opened the session concurrently.
		ctrl.Close()
		return existing.ctrl, nil
	}
	r.sessions[sessionID] = registryEntry{ctrl: ctrl, expiresAt: expiresAt}
	r.mu.Unlock()

	r.log.Info("session opened",
		zap.String("session_id", sessionID),
		zap.String("user_id", identity.ID),
		zap.Time("expires_at", expiresAt),
	)
	return ctrl, nil
}

// Get returns the session's controller if it is open.
func (r *SessionRegistry) Get(sessionID string) (*OrderController, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sessionID]
	return entry.ctrl, ok
}

// Close disposes the session's controller, if any.
func (r *SessionRegistry) Close(sessionID string) {
	r.mu.Lock()
	entry, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if ok {
		entry.ctrl.Close()
		r.log.Info("session closed", zap.String("session_id", sessionID))
	}
}

// Sweep disposes every session whose expiry has passed and returns how many
// were removed.
func (r *SessionRegistry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	var expired []*OrderController
	for id, entry := range r.sessions {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			expired = append(expired, entry.ctrl)
			delete(r.sessions, id)
			r.log.Info("session expired", zap.String("session_id", id))
		}
	}
	r.mu.Unlock()

	for _, ctrl := range expired {
		ctrl.Close()
	}
	return len(expired)
}

// Run calls Sweep every interval until ctx is cancelled.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// CloseAll disposes every open controller.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]registryEntry)
	r.mu.Unlock()

	for _, entry := range sessions {
		entry.ctrl.Close()
	}
}

// Len returns the number of open sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
