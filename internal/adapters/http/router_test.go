package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/roomchat/internal/adapters/signal"
	"github.com/dkeye/roomchat/internal/app"
	"github.com/dkeye/roomchat/internal/app/bus"
	"github.com/dkeye/roomchat/internal/app/chat"
	"github.com/dkeye/roomchat/internal/app/orch"
	"github.com/dkeye/roomchat/internal/auth"
	"github.com/dkeye/roomchat/internal/config"
	"github.com/dkeye/roomchat/internal/domain"
	"github.com/dkeye/roomchat/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeProfiles map[string]auth.Profile

func (f fakeProfiles) FetchProfile(_ context.Context, token string) (auth.Profile, error) {
	p, ok := f[token]
	if !ok {
		return auth.Profile{}, auth.ErrProviderRejected
	}
	return p, nil
}

type testEnv struct {
	srv   *httptest.Server
	coord *orch.Coordinator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	st := store.New(db)
	require.NoError(t, st.Migrate())

	reg := prometheus.NewRegistry()
	metrics := app.NewMetrics(reg)
	coord := orch.New(0, app.SimplePolicy{}, metrics)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = coord.Run(ctx) }()

	cfg := &config.Config{Mode: "test", Secret: "test-secret", JWTTTL: time.Hour}
	jwt := auth.NewJWTManager(cfg.Secret, cfg.JWTTTL)
	svc := chat.NewService(st, bus.NewLocalPublisher(coord), chat.Options{})

	r := SetupRouter(ctx, cfg, Deps{
		Store:    st,
		Chat:     svc,
		Presence: coord,
		JWT:      jwt,
		Profiles: fakeProfiles{
			"alice-token": {Email: "alice@example.com", Name: "Alice", Picture: "a.png"},
			"bob-token":   {Email: "bob@example.com", Name: ""},
		},
		Signal:   signal.NewSignalWSController(coord, signal.Options{PongWait: 5 * time.Second}, nil),
		Gatherer: reg,
	})
	srv := httptest.NewServer(WithCORS(r, []string{"http://localhost:3000"}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		_ = sqlDB.Close()
	})
	return &testEnv{srv: srv, coord: coord}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) login(t *testing.T, providerToken string) (string, domain.User) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/google", "", gin.H{"token": providerToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody[authResp](t, resp)
	require.NotEmpty(t, out.Token)
	return out.Token, out.User
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/api/rooms", "/api/rooms/mine", "/api/auth/me", "/api/presence", "/api/ws"} {
		resp := e.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	resp := e.do(t, http.MethodGet, "/api/rooms", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGoogleLogin(t *testing.T) {
	e := newTestEnv(t)

	token, u := e.login(t, "alice-token")
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "Alice", u.Name)

	resp := e.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decodeBody[struct {
		User domain.User `json:"user"`
	}](t, resp)
	assert.Equal(t, u.ID, me.User.ID)

	_, bob := e.login(t, "bob-token")
	assert.Equal(t, "bob", bob.Name, "empty provider name falls back to email")

	resp = e.do(t, http.MethodPost, "/api/auth/google", "", gin.H{"token": "unknown"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/auth/google", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionCookieAuth(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodPost, "/api/auth/google", "", gin.H{"token": "alice-token"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionName {
			session = c
		}
	}
	require.NotNil(t, session)

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(session)
	me, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer me.Body.Close()
	assert.Equal(t, http.StatusOK, me.StatusCode)
}

func TestRoomsFlow(t *testing.T) {
	e := newTestEnv(t)
	alice, _ := e.login(t, "alice-token")
	bob, bobUser := e.login(t, "bob-token")

	resp := e.do(t, http.MethodPost, "/api/rooms", alice, gin.H{"name": "general"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	room := decodeBody[domain.Room](t, resp)
	assert.Equal(t, "general", room.Name)

	resp = e.do(t, http.MethodPost, "/api/rooms", alice, gin.H{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/rooms", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]domain.Room](t, resp), 1)

	resp = e.do(t, http.MethodGet, "/api/rooms/mine", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[struct {
		Data []domain.Room `json:"data"`
	}](t, resp).Data)

	path := "/api/rooms/" + itoa(room.ID)
	resp = e.do(t, http.MethodPost, path+"/join", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodGet, path+"/users", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := decodeBody[[]domain.User](t, resp)
	require.Len(t, users, 2)
	assert.Equal(t, bobUser.ID, users[1].ID)

	resp = e.do(t, http.MethodPost, path+"/messages", bob, gin.H{"content": "hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	msg := decodeBody[domain.Message](t, resp)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, bobUser.ID, msg.User.ID)

	resp = e.do(t, http.MethodPost, path+"/messages", bob, gin.H{"content": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodGet, path+"/messages", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msgs := decodeBody[[]domain.Message](t, resp)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestRoomErrors(t *testing.T) {
	e := newTestEnv(t)
	alice, _ := e.login(t, "alice-token")

	resp := e.do(t, http.MethodGet, "/api/rooms/abc/messages", alice, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/rooms/0/online", alice, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/rooms/99/join", alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/rooms/99/messages", alice, gin.H{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebsocketPresenceAndMessages(t *testing.T) {
	e := newTestEnv(t)
	alice, aliceUser := e.login(t, "alice-token")

	resp := e.do(t, http.MethodPost, "/api/rooms", alice, gin.H{"name": "general"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	room := decodeBody[domain.Room](t, resp)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + alice}})
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(signal.JoinPayload{
		Type: signal.TypeJoinRoom,
		Room: room.ID,
		User: aliceUser.Identity(),
	}))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var upd app.PresenceUpdate
	require.NoError(t, ws.ReadJSON(&upd))
	assert.Equal(t, app.TypeOnlineUsers, upd.Type)
	require.Len(t, upd.Users, 1)
	assert.Equal(t, aliceUser.ID, upd.Users[0].ID)

	resp = e.do(t, http.MethodGet, "/api/rooms/"+itoa(room.ID)+"/online", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	online := decodeBody[struct {
		Users []domain.Identity `json:"users"`
	}](t, resp)
	assert.Len(t, online.Users, 1)

	resp = e.do(t, http.MethodGet, "/api/presence", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decodeBody[struct {
		Rooms []struct {
			ID     domain.RoomID `json:"id"`
			Online int           `json:"online"`
		} `json:"rooms"`
	}](t, resp)
	require.Len(t, stats.Rooms, 1)
	assert.Equal(t, 1, stats.Rooms[0].Online)

	resp = e.do(t, http.MethodPost, "/api/rooms/"+itoa(room.ID)+"/messages", alice, gin.H{"content": "over the wire"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var nm app.NewMessage
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, ws.ReadJSON(&nm))
	assert.Equal(t, app.TypeNewMessage, nm.Type)
	assert.Equal(t, "over the wire", nm.Message.Content)
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t)
	req, err := http.NewRequest(http.MethodOptions, e.srv.URL+"/api/rooms", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "roomchat_connections")
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusOf(store.ErrNotFound))
	assert.Equal(t, http.StatusTooManyRequests, statusOf(chat.ErrRateLimited))
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(orch.ErrStopped))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("boom")))
}

func itoa(id domain.RoomID) string {
	b, _ := json.Marshal(id)
	return string(b)
}
