package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/shoichi/unimart/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Lookup(ctx context.Context, id, email, name string) ([]model.User, error)
}

// UserHandler はユーザーディレクトリのHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// userRecord はユーザー1件のAPIレスポンス。
type userRecord struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// Lookup はid・email・nameの条件でユーザーを検索する。
// GET /api/user/
func (h *UserHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	users, err := h.service.Lookup(r.Context(), query.Get("id"), query.Get("email"), query.Get("name"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	records := make([]userRecord, len(users))
	for i, u := range users {
		records[i] = userRecord{
			ID:        u.ID,
			Email:     u.Email,
			Name:      u.Name,
			CreatedAt: u.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}
