package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stafflink/stafflink-chat/internal/access"
)

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "hanna", Password: testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decode[AuthResponse](t, rec); resp.Token == "" {
		t.Fatal("expected a token")
	}

	rec = env.do(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "hanna", Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "hanna"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/conversations", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := env.do(t, http.MethodGet, "/api/conversations", "hanna", nil)
	if req.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", req.Code)
	}
}

func TestSendMessageEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	announcements := env.channelID(t, access.SlugAnnouncements)
	path := fmt.Sprintf("/api/conversations/%d/messages", announcements)

	rec := env.do(t, http.MethodPost, path, "hanna", SendMessageRequest{Body: "welcome"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	msg := decode[MessageResponse](t, rec)
	if msg.Body != "welcome" || msg.Sender.Name != "hanna" || msg.MsgType != "text" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	// View-only role posting.
	rec = env.do(t, http.MethodPost, path, "eve", SendMessageRequest{Body: "hi"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee, got %d", rec.Code)
	}

	// Hidden channel reads as missing.
	hrTeam := env.channelID(t, access.SlugHRTeam)
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/conversations/%d/messages", hrTeam), "eve", SendMessageRequest{Body: "hi"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for hidden channel, got %d", rec.Code)
	}

	// Whitespace-only body survives binding but fails validation.
	rec = env.do(t, http.MethodPost, path, "hanna", SendMessageRequest{Body: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank body, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/conversations/abc/messages", "hanna", SendMessageRequest{Body: "hi"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	announcements := env.channelID(t, access.SlugAnnouncements)
	path := fmt.Sprintf("/api/conversations/%d/messages", announcements)

	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, path, "admin", SendMessageRequest{Body: "note"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("send %d failed: %d", i, rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, path+"?page_size=2", "eve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	page := decode[HistoryResponse](t, rec)
	if len(page.Messages) != 2 || !page.HasMore {
		t.Fatalf("unexpected page: %d messages hasMore=%v", len(page.Messages), page.HasMore)
	}

	cursor := page.Messages[0].ID
	rec = env.do(t, http.MethodGet, fmt.Sprintf("%s?page_size=2&before_id=%d", path, cursor), "eve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	page = decode[HistoryResponse](t, rec)
	if len(page.Messages) != 1 || page.HasMore {
		t.Fatalf("unexpected last page: %d messages hasMore=%v", len(page.Messages), page.HasMore)
	}

	for _, q := range []string{"?before_id=abc", "?before_id=0", "?page_size=0", "?page_size=101"} {
		rec = env.do(t, http.MethodGet, path+q, "eve", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", q, rec.Code)
		}
	}
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	env := newTestEnv(t, false)
	announcements := env.channelID(t, access.SlugAnnouncements)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/conversations/%d/messages", announcements), "hanna", SendMessageRequest{Body: "all hands"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("send failed: %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/unread-count", "eve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if count := decode[UnreadCountResponse](t, rec); count.Count != 1 {
		t.Fatalf("expected 1 unread, got %d", count.Count)
	}

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/conversations/%d/read", announcements), "eve", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/unread-count", "eve", nil)
	if count := decode[UnreadCountResponse](t, rec); count.Count != 0 {
		t.Fatalf("expected 0 unread after read, got %d", count.Count)
	}
}

func TestDirectEndpoint(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/dms", "eve", DirectRequest{UserID: env.users["mark"].ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	first := decode[DirectResponse](t, rec)

	// Same pair from the other side resolves to the same conversation.
	rec = env.do(t, http.MethodPost, "/api/dms", "mark", DirectRequest{UserID: env.users["eve"].ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if again := decode[DirectResponse](t, rec); again.ConversationID != first.ConversationID {
		t.Fatalf("expected conversation %d, got %d", first.ConversationID, again.ConversationID)
	}

	rec = env.do(t, http.MethodPost, "/api/dms", "eve", DirectRequest{UserID: env.users["admin"].ID})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee-admin pair, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/dms", "eve", DirectRequest{UserID: env.users["eve"].ID})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for self-DM, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/dms", "eve", DirectRequest{UserID: 9999})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func TestConversationVisibility(t *testing.T) {
	env := newTestEnv(t, false)
	hrTeam := env.channelID(t, access.SlugHRTeam)

	rec := env.do(t, http.MethodGet, "/api/conversations", "eve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for _, conv := range decode[[]ConversationResponse](t, rec) {
		if conv.ID == hrTeam {
			t.Fatal("employee listing must not include hr-team")
		}
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/conversations/%d", hrTeam), "eve", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for hidden channel detail, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/conversations/%d", hrTeam), "hanna", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for hr, got %d: %s", rec.Code, rec.Body.String())
	}
	detail := decode[ConversationDetailResponse](t, rec)
	if detail.Conversation.ID != hrTeam || detail.Conversation.Kind != "channel" {
		t.Fatalf("unexpected detail: %+v", detail.Conversation)
	}
}

func TestWriteGuardDemoMode(t *testing.T) {
	env := newTestEnv(t, true)
	announcements := env.channelID(t, access.SlugAnnouncements)

	// Reads stay open.
	rec := env.do(t, http.MethodGet, "/api/conversations", "hanna", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for read, got %d", rec.Code)
	}

	// Writes are rejected before they reach the chat core.
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/conversations/%d/messages", announcements), "hanna", SendMessageRequest{Body: "hi"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for write in demo mode, got %d", rec.Code)
	}

	// Login is outside the guard.
	rec = env.do(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "hanna", Password: testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for login, got %d", rec.Code)
	}
}
