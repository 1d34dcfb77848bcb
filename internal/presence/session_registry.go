// Package presence holds the authoritative in-memory view of who is online
// and which rooms their connections occupy, and derives the presence
// snapshots broadcast to clients.
package presence

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"relay-service/internal/events"
	"relay-service/internal/models"
	"relay-service/pkg/apperror"
)

var (
	// ErrAlreadyPresent is returned when the user (or the connection) already
	// has a live session. The registry is left untouched.
	ErrAlreadyPresent = errors.New("session already present")

	// ErrUserNotFound is returned when neither the primary nor the alternate
	// key lookup finds the user.
	ErrUserNotFound = apperror.AuthFailure("user not found")
)

// UserStore is the slice of the persistent store the registry needs
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*models.UserProfile, error)
	FindUserByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	UpdateLastSeen(ctx context.Context, userID string, at time.Time) error
}

// StatusMirror receives best-effort online/offline updates
type StatusMirror interface {
	SetUserOnline(ctx context.Context, userID string) error
	SetUserOffline(ctx context.Context, userID string) error
}

// Session binds one live connection to an authenticated user
type Session struct {
	ConnectionID   string
	UserID         string
	Username       string
	Image          string
	City           string
	Premium        bool
	FollowersCount int
	ConnectedAt    time.Time
}

// SessionRegistry maps connection identity to session, with a secondary index
// by user identity. Insertion order is kept for snapshots.
type SessionRegistry struct {
	store  UserStore
	mirror StatusMirror
	bg     *events.Background
	now    func() time.Time

	mu     sync.RWMutex
	order  *list.List               // of *Session, insertion order
	byConn map[string]*list.Element // connectionID -> element
	byUser map[string]string        // userID -> connectionID
}

// RegistryOption customizes a SessionRegistry
type RegistryOption func(*SessionRegistry)

// WithStatusMirror mirrors online/offline transitions to m
func WithStatusMirror(m StatusMirror) RegistryOption {
	return func(r *SessionRegistry) { r.mirror = m }
}

// WithBackground runs best-effort side calls on bg instead of a private one
func WithBackground(bg *events.Background) RegistryOption {
	return func(r *SessionRegistry) { r.bg = bg }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) RegistryOption {
	return func(r *SessionRegistry) { r.now = now }
}

func NewSessionRegistry(store UserStore, opts ...RegistryOption) *SessionRegistry {
	r := &SessionRegistry{
		store:  store,
		bg:     &events.Background{},
		now:    time.Now,
		order:  list.New(),
		byConn: make(map[string]*list.Element),
		byUser: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register authenticates userID for connectionID. The user is looked up by
// primary key first and by email second. The presence check and the insert
// happen under one lock, so concurrent registrations for the same user
// produce exactly one session even though the lookups overlap.
func (r *SessionRegistry) Register(ctx context.Context, connectionID, userID string) (*Session, error) {
	if r.isPresent(connectionID, userID) {
		return nil, ErrAlreadyPresent
	}

	profile, err := r.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ConnectionID:   connectionID,
		UserID:         profile.ID,
		Username:       profile.Username,
		Image:          profile.Image,
		City:           profile.City,
		Premium:        profile.Premium,
		FollowersCount: profile.FollowersCount,
		ConnectedAt:    r.now(),
	}

	r.mu.Lock()
	if _, ok := r.byConn[connectionID]; ok {
		r.mu.Unlock()
		return nil, ErrAlreadyPresent
	}
	if _, ok := r.byUser[sess.UserID]; ok {
		r.mu.Unlock()
		return nil, ErrAlreadyPresent
	}
	r.byConn[connectionID] = r.order.PushBack(sess)
	r.byUser[sess.UserID] = connectionID
	r.mu.Unlock()

	slog.Info("Session registered", "connectionID", connectionID, "userID", sess.UserID, "username", sess.Username)
	r.touch(sess.UserID, true)

	cp := *sess
	return &cp, nil
}

// Unregister removes and returns the session bound to connectionID, if any
func (r *SessionRegistry) Unregister(connectionID string) (*Session, bool) {
	r.mu.Lock()
	el, ok := r.byConn[connectionID]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	sess := r.order.Remove(el).(*Session)
	delete(r.byConn, connectionID)
	if r.byUser[sess.UserID] == connectionID {
		delete(r.byUser, sess.UserID)
	}
	r.mu.Unlock()

	slog.Info("Session unregistered", "connectionID", connectionID, "userID", sess.UserID)
	r.touch(sess.UserID, false)

	cp := *sess
	return &cp, true
}

// FindByConnection returns the session bound to connectionID
func (r *SessionRegistry) FindByConnection(connectionID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	el, ok := r.byConn[connectionID]
	if !ok {
		return nil
	}
	cp := *el.Value.(*Session)
	return &cp
}

// FindByUser returns the live session of userID
func (r *SessionRegistry) FindByUser(userID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	cp := *r.byConn[connID].Value.(*Session)
	return &cp
}

// Find returns the first session, in insertion order, matching pred
func (r *SessionRegistry) Find(pred func(Session) bool) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for el := r.order.Front(); el != nil; el = el.Next() {
		s := *el.Value.(*Session)
		if pred(s) {
			return &s
		}
	}
	return nil
}

// Snapshot returns a copy of every live session in insertion order
func (r *SessionRegistry) Snapshot() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, 0, r.order.Len())
	for el := r.order.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*Session))
	}
	return out
}

// Len returns the number of live sessions
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.order.Len()
}

// WaitBackground blocks until pending last-seen and mirror updates finish
func (r *SessionRegistry) WaitBackground() {
	r.bg.Wait()
}

func (r *SessionRegistry) isPresent(connectionID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.byConn[connectionID]; ok {
		return true
	}
	_, ok := r.byUser[userID]
	return ok
}

func (r *SessionRegistry) lookup(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := r.store.FindUserByID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("find user by id: %w", err)
	}

	slog.Debug("User not found by id, trying email", "userID", userID)
	profile, err = r.store.FindUserByEmail(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return nil, fmt.Errorf("find user by email: %w", err)
}

func (r *SessionRegistry) touch(userID string, online bool) {
	at := r.now()
	r.bg.Go("update last seen", func(ctx context.Context) error {
		return r.store.UpdateLastSeen(ctx, userID, at)
	})

	if r.mirror == nil {
		return
	}
	r.bg.Go("mirror status", func(ctx context.Context) error {
		if online {
			return r.mirror.SetUserOnline(ctx, userID)
		}
		return r.mirror.SetUserOffline(ctx, userID)
	})
}
