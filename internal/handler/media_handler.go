package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/shoichi/unimart/internal/media"
)

// ImageOpener は保存済み画像の読み取りインターフェース。
type ImageOpener interface {
	OpenImage(ctx context.Context, filename string) (io.ReadCloser, error)
}

// MediaHandler は画像配信のHTTPハンドラー。
type MediaHandler struct {
	images ImageOpener
}

// NewMediaHandler はMediaHandlerを生成する。
func NewMediaHandler(images ImageOpener) *MediaHandler {
	return &MediaHandler{images: images}
}

// Serve は保存済みの画像・サムネイルを配信する。
// GET /api/images/{file}
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "file")

	rc, err := h.images.OpenImage(r.Context(), filename)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.Error("画像の読み取りに失敗しました",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")

	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("画像の送信が中断されました",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
	}
}
