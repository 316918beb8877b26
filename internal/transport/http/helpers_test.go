package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stafflink/stafflink-chat/internal/access"
	"github.com/stafflink/stafflink-chat/internal/auth"
	"github.com/stafflink/stafflink-chat/internal/config"
	"github.com/stafflink/stafflink-chat/internal/core"
	"github.com/stafflink/stafflink-chat/internal/service/chat"
	"github.com/stafflink/stafflink-chat/internal/store"
	"github.com/stafflink/stafflink-chat/internal/store/sqlite"
)

const testPassword = "pass1234"

type testEnv struct {
	handler http.Handler
	store   *sqlite.SQLiteStore
	service *chat.Service
	tokens  map[string]string // username -> bearer token
	users   map[string]*store.User
}

func newTestEnv(t *testing.T, demoMode bool) *testEnv {
	t.Helper()
	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	if err := st.EnsureChannels(ctx, access.Channels()); err != nil {
		t.Fatalf("failed to seed channels: %v", err)
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "stafflink-chat",
		Audience: "stafflink-chat",
		TTL:      time.Hour,
	}
	logger := zerolog.Nop()
	authService := auth.NewService(st, jwtConfig)
	chatService := chat.New(st, nil, nil, &logger, 30)
	hub := core.NewHub(chatService, &logger)

	cfg := &config.Config{
		Addr:     "127.0.0.1:0",
		DemoMode: demoMode,
	}
	server := NewServer(hub, authService, chatService, cfg, &logger)

	env := &testEnv{
		handler: server.Handler,
		store:   st,
		service: chatService,
		tokens:  make(map[string]string),
		users:   make(map[string]*store.User),
	}

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	seed := []struct {
		username string
		role     store.Role
	}{
		{"admin", store.RoleAdmin},
		{"hanna", store.RoleHR},
		{"mark", store.RoleManager},
		{"eve", store.RoleEmployee},
	}
	for _, s := range seed {
		user, err := st.CreateUser(ctx, s.username, s.username, s.role, hash)
		if err != nil {
			t.Fatalf("failed to create user %s: %v", s.username, err)
		}
		token, err := authService.Login(ctx, s.username, testPassword)
		if err != nil {
			t.Fatalf("failed to login %s: %v", s.username, err)
		}
		env.users[s.username] = user
		env.tokens[s.username] = token
	}
	return env
}

// do performs a request as the named user (empty string for anonymous)
// and returns the recorded response.
func (e *testEnv) do(t *testing.T, method, path, username string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if username != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[username])
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) channelID(t *testing.T, slug string) int64 {
	t.Helper()
	conv, err := e.store.GetChannelBySlug(context.Background(), slug)
	if err != nil {
		t.Fatalf("failed to load channel %s: %v", slug, err)
	}
	return conv.ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}
