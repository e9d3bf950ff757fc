package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shoichi/unimart/internal/model"
)

// TestMiddlewareChain_AuthThenRateLimit は認可とレート制限のチェーンが
// 正しい順序で動作することを検証する。
func TestMiddlewareChain_AuthThenRateLimit(t *testing.T) {
	authorizer := &mockAuthorizer{
		authorizeFn: func(context.Context, string) (*model.Identity, error) {
			return &model.Identity{SubjectID: "user-chain-test"}, nil
		},
	}

	rl := NewRateLimiter(NewRateLimiterConfig(120, 10))
	defer rl.Stop()

	authMW := NewAuthMiddleware(authorizer)
	rateMW := rl.GeneralMiddleware()

	var capturedID string
	handler := authMW(rateMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())
		capturedID = identity.SubjectID
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/postings/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if capturedID != "user-chain-test" {
		t.Errorf("userID = %q, want %q", capturedID, "user-chain-test")
	}
}

// TestMiddlewareChain_UnauthenticatedStopsAtAuth は未認証リクエストが
// 認可ミドルウェアで止まることを検証する。
func TestMiddlewareChain_UnauthenticatedStopsAtAuth(t *testing.T) {
	authorizer := &mockAuthorizer{
		authorizeFn: func(context.Context, string) (*model.Identity, error) {
			t.Fatal("authorize should not be called")
			return nil, nil
		},
	}

	rl := NewRateLimiter(NewRateLimiterConfig(120, 10))
	defer rl.Stop()

	handler := NewAuthMiddleware(authorizer)(rl.GeneralMiddleware()(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		})))

	req := httptest.NewRequest(http.MethodPost, "/api/postings/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}
