package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shoichi/unimart/internal/model"
)

// mockAuthorizer はAuthorizerのテスト用モック。
type mockAuthorizer struct {
	authorizeFn func(ctx context.Context, sessionID string) (*model.Identity, error)
}

func (m *mockAuthorizer) Authorize(ctx context.Context, sessionID string) (*model.Identity, error) {
	return m.authorizeFn(ctx, sessionID)
}

func TestAuthMiddleware_ValidSession(t *testing.T) {
	authorizer := &mockAuthorizer{
		authorizeFn: func(_ context.Context, sessionID string) (*model.Identity, error) {
			if sessionID != "valid-session" {
				t.Errorf("sessionID = %q", sessionID)
			}
			return &model.Identity{
				SubjectID:    "sub-123",
				Email:        "student@example.ac.jp",
				HostedDomain: "example.ac.jp",
			}, nil
		},
	}

	var captured *model.Identity
	handler := NewAuthMiddleware(authorizer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/postings/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if captured == nil || captured.SubjectID != "sub-123" {
		t.Errorf("identity = %+v, want sub-123", captured)
	}
}

func TestAuthMiddleware_NoCookieReturns403(t *testing.T) {
	authorizer := &mockAuthorizer{
		authorizeFn: func(context.Context, string) (*model.Identity, error) {
			t.Fatal("Cookieなしのリクエストで認可が呼ばれました")
			return nil, nil
		},
	}

	handler := NewAuthMiddleware(authorizer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/postings/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestAuthMiddleware_RejectedTokenReturns403(t *testing.T) {
	authorizer := &mockAuthorizer{
		authorizeFn: func(context.Context, string) (*model.Identity, error) {
			return nil, errors.New("token rejected")
		},
	}

	handler := NewAuthMiddleware(authorizer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/postings/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "revoked-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestIdentityFromContext_Missing(t *testing.T) {
	if _, err := IdentityFromContext(context.Background()); err == nil {
		t.Error("Identityなしのコンテキストでエラーが返りません")
	}
}

func TestContextWithIdentity_RoundTrip(t *testing.T) {
	identity := &model.Identity{SubjectID: "sub-1", Email: "a@example.ac.jp"}
	ctx := ContextWithIdentity(context.Background(), identity)

	got, err := IdentityFromContext(ctx)
	if err != nil {
		t.Fatalf("IdentityFromContext() error = %v", err)
	}
	if got.SubjectID != "sub-1" {
		t.Errorf("SubjectID = %q, want sub-1", got.SubjectID)
	}
}
