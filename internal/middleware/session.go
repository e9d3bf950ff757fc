// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shoichi/unimart/internal/model"
)

// SessionCookieName はセッションIDを保持するCookie名。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済みIdentityを格納するためのキー。
var identityContextKey = contextKey("identity")

// Authorizer はセッションIDから認証済みIdentityを取得するインターフェース。
// auth.Serviceの部分集合として定義する。
type Authorizer interface {
	Authorize(ctx context.Context, sessionID string) (*model.Identity, error)
}

// NewAuthMiddleware はHTTP Only Cookieからセッションを読み取り、
// 保持されたIDトークンを再検証するミドルウェアを返す。
// 認証済みIdentityをリクエストコンテキストに注入する。
// 検証に失敗したリクエストには403を返す。どの検証段階で失敗したかは漏らさない。
func NewAuthMiddleware(authorizer Authorizer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusForbidden, model.NewAuthRejectedError())
				return
			}

			identity, err := authorizer.Authorize(r.Context(), cookie.Value)
			if err != nil {
				slog.Info("認可に失敗しました",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewAuthRejectedError())
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext はリクエストコンテキストから認証済みIdentityを取得する。
// 認可ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*model.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok || identity == nil {
		return nil, fmt.Errorf("identity not found in context")
	}
	return identity, nil
}

// ContextWithIdentity はコンテキストにIdentityを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
