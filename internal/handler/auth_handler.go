package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shoichi/unimart/internal/middleware"
	"github.com/shoichi/unimart/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Login はIDトークンを検証し、セッションを発行する。
	Login(ctx context.Context, rawToken string) (*model.Session, error)
	// Logout はセッションを破棄する。
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はフロントエンドのGoogleサインインで取得したIDトークンを受け取り、
// 検証に成功したらセッションCookieを発行する。
// POST /api/auth/ （フォーム値 idtoken）
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	rawToken := r.FormValue("idtoken")
	if rawToken == "" {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewAuthRejectedError())
		return
	}

	session, err := h.service.Login(r.Context(), rawToken)
	if err != nil {
		slog.Info("login rejected", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewAuthRejectedError())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Logout はセッションを破棄し、Cookieをクリアする。
// GET /api/logout/
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		// セッション削除に失敗してもCookieはクリアする
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
