// Package testutil provides in-memory doubles for the persistent store and
// the connection emitter, shared by the relay package tests.
package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"relay-service/internal/events"
	"relay-service/internal/models"
	"relay-service/pkg/apperror"

	"github.com/google/uuid"
)

// FakeStore is an in-memory store. Fail* fields inject errors into the
// matching operation.
type FakeStore struct {
	mu sync.Mutex

	Users          map[string]*models.User
	Followers      map[string]int
	Posts          map[string]*models.Post
	Comments       map[string]*models.Comment
	Messages       []*models.Message
	PublicMessages []*models.PublicMessage
	Notifications  []*models.Notification
	LastSeen       map[string]time.Time

	FailCreateMessage       error
	FailCreatePublicMessage error
	FailCreateNotification  error
	FailFindUser            error
	FailUpdateLastSeen      error

	// LookupDelay slows user lookups so tests can overlap registrations
	LookupDelay time.Duration
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		Users:     make(map[string]*models.User),
		Followers: make(map[string]int),
		Posts:     make(map[string]*models.Post),
		Comments:  make(map[string]*models.Comment),
		LastSeen:  make(map[string]time.Time),
	}
}

func (s *FakeStore) AddUser(id, username string, premium bool) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &models.User{
		Base:     models.Base{ID: id, CreatedAt: time.Now()},
		Username: username,
		Email:    username + "@example.com",
		Premium:  premium,
	}
	s.Users[id] = u
	return u
}

func (s *FakeStore) AddPost(id, ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Posts[id] = &models.Post{Base: models.Base{ID: id}, UserID: ownerID}
}

func (s *FakeStore) AddComment(id, postID, authorID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Comments[id] = &models.Comment{Base: models.Base{ID: id}, PostID: postID, UserID: authorID, Content: content}
}

func (s *FakeStore) profile(u *models.User) *models.UserProfile {
	return &models.UserProfile{
		ID:             u.ID,
		Username:       u.Username,
		Image:          u.Image,
		City:           u.City,
		Premium:        u.Premium,
		FollowersCount: s.Followers[u.ID],
	}
}

func (s *FakeStore) FindUserByID(ctx context.Context, id string) (*models.UserProfile, error) {
	if s.LookupDelay > 0 {
		time.Sleep(s.LookupDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailFindUser != nil {
		return nil, s.FailFindUser
	}
	u, ok := s.Users[id]
	if !ok {
		return nil, apperror.NotFound("user %s not found", id)
	}
	return s.profile(u), nil
}

func (s *FakeStore) FindUserByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.Users {
		if u.Email == email {
			return s.profile(u), nil
		}
	}
	return nil, apperror.NotFound("user %s not found", email)
}

func (s *FakeStore) UpdateLastSeen(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailUpdateLastSeen != nil {
		return s.FailUpdateLastSeen
	}
	s.LastSeen[userID] = at
	return nil
}

func (s *FakeStore) FindPostOwner(ctx context.Context, postID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.Posts[postID]
	if !ok {
		return "", apperror.NotFound("post %s not found", postID)
	}
	return p.UserID, nil
}

func (s *FakeStore) FindComment(ctx context.Context, commentID string) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.Comments[commentID]
	if !ok {
		return nil, apperror.NotFound("comment %s not found", commentID)
	}
	cp := *c
	return &cp, nil
}

func (s *FakeStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreateNotification != nil {
		return apperror.Persistence("failed to create notification", s.FailCreateNotification)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now()
	s.Notifications = append(s.Notifications, n)
	return nil
}

// ListUnread returns unread notifications of userID, newest first
func (s *FakeStore) ListUnread(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Notification, 0)
	for i := len(s.Notifications) - 1; i >= 0 && len(out) < limit; i-- {
		n := s.Notifications[i]
		if n.UserID == userID && !n.Read {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *FakeStore) HasMessageFrom(ctx context.Context, senderID, receiverID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.Messages {
		if m.SenderID == senderID && m.ReceiverID == receiverID {
			return true, nil
		}
	}
	return false, nil
}

func (s *FakeStore) CreateMessage(ctx context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreateMessage != nil {
		return apperror.Persistence("failed to create message", s.FailCreateMessage)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now()
	s.Messages = append(s.Messages, m)
	return nil
}

func (s *FakeStore) CreatePublicMessage(ctx context.Context, m *models.PublicMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreatePublicMessage != nil {
		return apperror.Persistence("failed to create public message", s.FailCreatePublicMessage)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now()
	if u, ok := s.Users[m.SenderID]; ok {
		cp := *u
		m.Sender = &cp
	}
	s.PublicMessages = append(s.PublicMessages, m)
	return nil
}

func (s *FakeStore) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Messages)
}

func (s *FakeStore) NotificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Notifications)
}

func (s *FakeStore) LastSeenOf(userID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.LastSeen[userID]
	return at, ok
}

// Emitted is one event captured by RecordingEmitter. Payload is the JSON
// encoding of what was emitted.
type Emitted struct {
	ConnectionID string
	Event        events.Type
	Payload      json.RawMessage
}

// RecordingEmitter records events per connection. Connections must be added
// with Connect before EmitAll reaches them.
type RecordingEmitter struct {
	mu    sync.Mutex
	conns []string
	log   []Emitted
}

func NewRecordingEmitter() *RecordingEmitter {
	return &RecordingEmitter{}
}

func (e *RecordingEmitter) Connect(connectionIDs ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conns = append(e.conns, connectionIDs...)
}

func (e *RecordingEmitter) EmitTo(connectionID string, event events.Type, payload any) {
	data, _ := json.Marshal(payload)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, Emitted{ConnectionID: connectionID, Event: event, Payload: data})
}

func (e *RecordingEmitter) EmitAll(event events.Type, payload any) {
	data, _ := json.Marshal(payload)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.conns {
		e.log = append(e.log, Emitted{ConnectionID: c, Event: event, Payload: data})
	}
}

// For returns the events delivered to connectionID, optionally filtered by type
func (e *RecordingEmitter) For(connectionID string, types ...events.Type) []Emitted {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Emitted, 0)
	for _, m := range e.log {
		if m.ConnectionID != connectionID {
			continue
		}
		if len(types) > 0 && !containsType(types, m.Event) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Of returns every recorded event of the given type
func (e *RecordingEmitter) Of(event events.Type) []Emitted {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Emitted, 0)
	for _, m := range e.log {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

func (e *RecordingEmitter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = nil
}

func containsType(types []events.Type, t events.Type) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// RecordingPublisher captures stream events
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

type PublishedEvent struct {
	Kind    string
	Key     string
	Payload any
}

func (p *RecordingPublisher) Publish(ctx context.Context, kind, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, PublishedEvent{Kind: kind, Key: key, Payload: payload})
	return nil
}

func (p *RecordingPublisher) Kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		out = append(out, e.Kind)
	}
	return out
}
