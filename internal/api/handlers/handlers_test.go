package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"relay-service/internal/models"
	"relay-service/internal/presence"
	"relay-service/internal/testutil"
	"relay-service/internal/websocket"
	"relay-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type presenceFixture struct {
	registry    *presence.SessionRegistry
	broadcaster *presence.Broadcaster
}

func newPresenceFixture(t *testing.T) presenceFixture {
	t.Helper()
	store := testutil.NewFakeStore()
	store.AddUser("u1", "alice", true)
	store.AddUser("u2", "bob", false)

	registry := presence.NewSessionRegistry(store)
	rooms := presence.NewRoomMembership()
	broadcaster := presence.NewBroadcaster(registry, rooms, testutil.NewRecordingEmitter())

	_, err := registry.Register(context.Background(), "c1", "u1")
	require.NoError(t, err)
	_, err = registry.Register(context.Background(), "c2", "u2")
	require.NoError(t, err)
	registry.WaitBackground()

	return presenceFixture{registry: registry, broadcaster: broadcaster}
}

type stubMirror struct {
	users    []string
	lastSeen map[string]time.Time
	err      error
}

func (s stubMirror) GetOnlineUsers(ctx context.Context) ([]string, error) {
	return s.users, s.err
}

func (s stubMirror) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	for _, u := range s.users {
		if u == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s stubMirror) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	if s.err != nil {
		return time.Time{}, false, s.err
	}
	at, ok := s.lastSeen[userID]
	return at, ok, nil
}

func TestGetPresence(t *testing.T) {
	f := newPresenceFixture(t)
	h := NewPresenceHandler(f.broadcaster, f.registry, websocket.NewConnectionMetrics(), stubMirror{users: []string{"u1", "u9"}})

	r := gin.New()
	r.GET("/presence", h.GetPresence)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/presence", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp PresenceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Users, 2)
	assert.Equal(t, "alice", resp.Users[0].Username)
	assert.Equal(t, "c2", resp.Users[1].SocketID)
	assert.NotNil(t, resp.Metrics)
	assert.Equal(t, []string{"u1", "u9"}, resp.Mirrored)
}

func TestGetPresenceMirrorFailure(t *testing.T) {
	f := newPresenceFixture(t)
	h := NewPresenceHandler(f.broadcaster, f.registry, nil, stubMirror{err: errors.New("redis down")})

	r := gin.New()
	r.GET("/presence", h.GetPresence)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/presence", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp PresenceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Nil(t, resp.Metrics)
	assert.Empty(t, resp.Mirrored)
}

func TestGetUserPresence(t *testing.T) {
	f := newPresenceFixture(t)
	h := NewPresenceHandler(f.broadcaster, f.registry, nil, nil)

	r := gin.New()
	r.GET("/presence/:userId", h.GetUserPresence)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/presence/u2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp UserPresenceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Online)
	assert.Equal(t, "c2", resp.SocketID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/presence/nobody", nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp = UserPresenceResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Online)
	assert.Empty(t, resp.SocketID)
}

func TestGetUserPresenceFromMirror(t *testing.T) {
	f := newPresenceFixture(t)
	seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mirror := stubMirror{users: []string{"u9"}, lastSeen: map[string]time.Time{"u8": seen}}
	h := NewPresenceHandler(f.broadcaster, f.registry, nil, mirror)

	r := gin.New()
	r.GET("/presence/:userId", h.GetUserPresence)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/presence/u9", nil))
	var resp UserPresenceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Online)
	assert.True(t, resp.OnlineElsewhere)
	assert.Empty(t, resp.LastSeen)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/presence/u8", nil))
	resp = UserPresenceResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.OnlineElsewhere)
	assert.Equal(t, "2024-05-01T12:00:00Z", resp.LastSeen)
}

type fakeMediaStore struct {
	owner, filename, contentType string
	body                         []byte
	err                          error
}

func (f *fakeMediaStore) Upload(ctx context.Context, ownerID, filename, contentType string, r io.Reader, size int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.owner, f.filename, f.contentType = ownerID, filename, contentType
	f.body, _ = io.ReadAll(r)
	return "http://minio.local/relay-media/media/" + filename, nil
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func mediaEngine(h *MediaHandler) *gin.Engine {
	r := gin.New()
	r.POST("/media", func(c *gin.Context) {
		c.Set("user_id", "u1")
		c.Next()
	}, h.Upload)
	return r
}

func TestUploadMedia(t *testing.T) {
	store := &fakeMediaStore{}
	r := mediaEngine(NewMediaHandler(store, 0))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "file", "cat.png", []byte("png-bytes")))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "http://minio.local/relay-media/media/cat.png", resp.URL)
	assert.Equal(t, "u1", store.owner)
	assert.Equal(t, []byte("png-bytes"), store.body)
	assert.Equal(t, "application/octet-stream", store.contentType)
}

func TestUploadMediaRejects(t *testing.T) {
	store := &fakeMediaStore{}
	r := mediaEngine(NewMediaHandler(store, 4))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "other", "cat.png", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "file", "cat.png", []byte("too large")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Code)

	store.err = errors.New("bucket gone")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "file", "a.png", []byte("ok")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	var failing bool
	h := NewHealthHandler(map[string]Pinger{
		"database": PingFunc(func(ctx context.Context) error { return nil }),
		"redis": PingFunc(func(ctx context.Context) error {
			if failing {
				return errors.New("connection refused")
			}
			return nil
		}),
	})

	r := gin.New()
	r.GET("/healthz", h.Live)
	r.GET("/readyz", h.Ready)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	failing = true
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["database"])
	assert.Equal(t, "connection refused", body["redis"])
}


func TestListUnreadNotifications(t *testing.T) {
	store := testutil.NewFakeStore()
	ctx := context.Background()
	require.NoError(t, store.CreateNotification(ctx, &models.Notification{UserID: "u1", Type: models.NotificationTypeLike, Title: "first"}))
	require.NoError(t, store.CreateNotification(ctx, &models.Notification{UserID: "u2", Type: models.NotificationTypeLike, Title: "other"}))
	require.NoError(t, store.CreateNotification(ctx, &models.Notification{UserID: "u1", Type: models.NotificationTypeFollow, Title: "second"}))
	require.NoError(t, store.CreateNotification(ctx, &models.Notification{UserID: "u1", Type: models.NotificationTypeFollow, Title: "seen", Read: true}))

	h := NewNotificationHandler(store)
	r := gin.New()
	r.GET("/notifications", func(c *gin.Context) {
		if id := c.Query("as"); id != "" {
			c.Set("user_id", id)
		}
		c.Next()
	}, h.ListUnread)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications?as=u1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var items []models.Notification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "second", items[0].Title)
	assert.Equal(t, "first", items[1].Title)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications?as=u1&limit=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	items = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Len(t, items, 1)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications?as=u1&limit=500", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications?as=nobody", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
