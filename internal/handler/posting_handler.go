package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shoichi/unimart/internal/middleware"
	"github.com/shoichi/unimart/internal/model"
	"github.com/shoichi/unimart/internal/posting"
)

// maxMultipartMemory はマルチパートフォームのメモリ上限（バイト）。
const maxMultipartMemory = 32 << 20 // 32MiB

// PostingServiceInterface は出品ハンドラーが必要とするサービスインターフェース。
type PostingServiceInterface interface {
	GetPostings(ctx context.Context, req posting.ListRequest) (*posting.PageResult, error)
	Create(ctx context.Context, owner string, in posting.CreateInput) (*model.Posting, error)
	Update(ctx context.Context, owner string, id int64, in posting.UpdateInput) (*model.Posting, error)
	Delete(ctx context.Context, owner string, id int64) error
	ListCategories(ctx context.Context) ([]model.Category, error)
}

// ImageSaver はアップロード画像の保存インターフェース。
type ImageSaver interface {
	SaveImage(ctx context.Context, r io.Reader, contentType string) (string, error)
}

// PostingHandler は出品のHTTPハンドラー。
type PostingHandler struct {
	service PostingServiceInterface
	images  ImageSaver
}

// NewPostingHandler はPostingHandlerを生成する。
func NewPostingHandler(service PostingServiceInterface, images ImageSaver) *PostingHandler {
	return &PostingHandler{
		service: service,
		images:  images,
	}
}

// postingRecord は出品1件のAPIレスポンス。
type postingRecord struct {
	ID          int64    `json:"id"`
	Owner       string   `json:"owner"`
	Email       string   `json:"email"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Cost        float64  `json:"cost"`
	Category    int      `json:"category"`
	Timestamp   string   `json:"timestamp"`
	Images      []string `json:"images"`
}

// pageResponse は一覧・検索のページレスポンス。
type pageResponse struct {
	Data     []postingRecord `json:"data"`
	NumPages int             `json:"num_pages"`
}

func toPostingRecord(p model.PostingWithOwner) postingRecord {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return postingRecord{
		ID:          p.ID,
		Owner:       p.Posting.Owner,
		Email:       p.Email,
		Title:       p.Title,
		Description: p.Description,
		Cost:        p.Cost,
		Category:    p.Category,
		Timestamp:   p.Timestamp.Format(time.RFC3339),
		Images:      images,
	}
}

// List は出品の一覧・検索を処理する。
// keywordsパラメータの有無で検索インデックス経由か絞り込み一覧かが切り替わる。
// GET /api/postings/
func (h *PostingHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	req := posting.ListRequest{
		Keywords: query.Get("keywords"),
		Sort:     model.ParseSortKey(query.Get("sort")),
	}

	// 不正なpage・per_pageはエラーにせずデフォルト値に落とす
	if page, err := strconv.Atoi(query.Get("page")); err == nil {
		req.Page = page
	}
	if perPage, err := strconv.Atoi(query.Get("per_page")); err == nil {
		req.PerPage = perPage
	}

	if raw := query.Get("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("idは整数で指定してください"))
			return
		}
		req.ID = &id
	}
	if raw := query.Get("owner"); raw != "" {
		req.Owner = &raw
	}
	if raw := query.Get("category"); raw != "" {
		category, err := strconv.Atoi(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("categoryは整数で指定してください"))
			return
		}
		req.Category = &category
	}
	if raw := query.Get("cost"); raw != "" {
		cost, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("costは数値で指定してください"))
			return
		}
		req.Cost = &cost
	}
	if raw := query.Get("max_cost"); raw != "" {
		maxCost, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("max_costは数値で指定してください"))
			return
		}
		req.MaxCost = &maxCost
	}

	result, err := h.service.GetPostings(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	records := make([]postingRecord, len(result.Postings))
	for i, p := range result.Postings {
		records[i] = toPostingRecord(p)
	}

	writeJSON(w, http.StatusOK, pageResponse{
		Data:     records,
		NumPages: result.NumPages,
	})
}

// Create は出品の新規作成を処理する。
// マルチパートフォームでフィールドと画像ファイルを受け取る。
// POST /api/postings/
func (h *PostingHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewAuthRejectedError())
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("マルチパートフォームの解析に失敗しました"))
		return
	}

	// 画像を先に保存し、ファイル名を出品に紐づける
	var images []string
	if r.MultipartForm != nil {
		for _, fileHeader := range r.MultipartForm.File["images"] {
			file, err := fileHeader.Open()
			if err != nil {
				writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("画像ファイルの読み取りに失敗しました"))
				return
			}
			filename, err := h.images.SaveImage(r.Context(), file, fileHeader.Header.Get("Content-Type"))
			file.Close()
			if err != nil {
				slog.Warn("画像の保存に失敗しました", slog.String("error", err.Error()))
				writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("画像の保存に失敗しました"))
				return
			}
			images = append(images, filename)
		}
	}

	created, err := h.service.Create(r.Context(), identity.SubjectID, posting.CreateInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Cost:        r.FormValue("cost"),
		Category:    r.FormValue("category"),
		Images:      images,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostingRecord(model.PostingWithOwner{
		Posting: *created,
		Email:   identity.Email,
	}))
}

// Update は出品の部分更新を処理する。
// フォームに含まれないフィールドは変更されない。
// PUT /api/postings/
func (h *PostingHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewAuthRejectedError())
		return
	}

	if err := r.ParseForm(); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("フォームの解析に失敗しました"))
		return
	}

	rawID := r.FormValue("id")
	if rawID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("idは必須です"))
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("idは整数で指定してください"))
		return
	}

	// フォームにキーが存在するフィールドのみ更新対象にする
	in := posting.UpdateInput{}
	if values, ok := r.Form["title"]; ok && len(values) > 0 {
		in.Title = &values[0]
	}
	if values, ok := r.Form["description"]; ok && len(values) > 0 {
		in.Description = &values[0]
	}
	if values, ok := r.Form["cost"]; ok && len(values) > 0 {
		in.Cost = &values[0]
	}
	if values, ok := r.Form["category"]; ok && len(values) > 0 {
		in.Category = &values[0]
	}

	updated, err := h.service.Update(r.Context(), identity.SubjectID, id, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostingRecord(model.PostingWithOwner{
		Posting: *updated,
		Email:   identity.Email,
	}))
}

// Delete は出品の削除を処理する。
// DELETE /api/postings/?id=N
func (h *PostingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewAuthRejectedError())
		return
	}

	rawID := r.URL.Query().Get("id")
	if rawID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("idは必須です"))
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("idは整数で指定してください"))
		return
	}

	if err := h.service.Delete(r.Context(), identity.SubjectID, id); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// categoryRecord はカテゴリ1件のAPIレスポンス。
type categoryRecord struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ListCategories はカテゴリ一覧を返す。
// GET /api/categories/
func (h *PostingHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	records := make([]categoryRecord, len(categories))
	for i, c := range categories {
		records[i] = categoryRecord{ID: c.ID, Name: c.Name}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}
