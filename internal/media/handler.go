package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// maxImageSize は受け付ける画像の最大サイズ（バイト）。
const maxImageSize = 10 << 20 // 10MiB

// extByContentType は受け付けるContent-Typeと拡張子の対応。
var extByContentType = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
}

// Handler は画像の保存・配信・削除とサムネイル生成を提供する。
type Handler struct {
	store  Store
	logger *slog.Logger
}

// NewHandler はHandlerを生成する。
func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// SaveImage はアップロードされた画像を保存し、保存ファイル名を返す。
// ファイル名はサーバー側で生成したuuidで、クライアント指定の名前は使用しない。
// 元画像と同時にサムネイル（最長辺320px、JPEG）も生成して保存する。
func (h *Handler) SaveImage(ctx context.Context, r io.Reader, contentType string) (string, error) {
	ext, ok := extByContentType[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(r, maxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > maxImageSize {
		return "", fmt.Errorf("image exceeds maximum size of %d bytes", maxImageSize)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty image data")
	}

	filename := fmt.Sprintf("%s.%s", strings.ReplaceAll(uuid.New().String(), "-", ""), ext)

	if err := h.store.Put(ctx, shardKey(filename), bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	// サムネイル生成は失敗しても元画像の保存を取り消さない
	thumb, err := makeThumbnail(data)
	if err != nil {
		h.logger.Warn("サムネイル生成に失敗しました",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
		return filename, nil
	}
	thumbName := ThumbName(filename)
	if err := h.store.Put(ctx, shardKey(thumbName), bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); err != nil {
		h.logger.Warn("サムネイルの保存に失敗しました",
			slog.String("filename", thumbName),
			slog.String("error", err.Error()),
		)
	}

	return filename, nil
}

// OpenImage は保存済み画像の読み取りストリームを開く。
// ファイル名にパス区切りを含むリクエストは拒否する。
func (h *Handler) OpenImage(ctx context.Context, filename string) (io.ReadCloser, error) {
	if filename == "" || strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		return nil, ErrNotFound
	}
	return h.store.Open(ctx, shardKey(filename))
}

// DeleteImages は出品に紐づく画像とサムネイルをすべて削除する。
// ベストエフォート: 既に存在しないファイルは黙って無視し、
// 削除エラーはログに残すのみで呼び出し元には返さない。
func (h *Handler) DeleteImages(ctx context.Context, filenames []string) {
	for _, filename := range filenames {
		if err := h.store.Delete(ctx, shardKey(filename)); err != nil {
			h.logger.Warn("画像の削除に失敗しました",
				slog.String("filename", filename),
				slog.String("error", err.Error()),
			)
		}
		if err := h.store.Delete(ctx, shardKey(ThumbName(filename))); err != nil {
			h.logger.Warn("サムネイルの削除に失敗しました",
				slog.String("filename", filename),
				slog.String("error", err.Error()),
			)
		}
	}
}

// ThumbName は元画像のファイル名からサムネイルのファイル名を導出する。
func ThumbName(filename string) string {
	base := filename
	if i := strings.LastIndex(filename, "."); i >= 0 {
		base = filename[:i]
	}
	return base + "_thumb.jpg"
}
