// Package posting は出品の閲覧・検索・作成・更新・削除のサービスを提供する。
package posting

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/shoichi/unimart/internal/model"
	"github.com/shoichi/unimart/internal/repository"
	"github.com/shoichi/unimart/internal/search"
	"github.com/shoichi/unimart/internal/security"
)

// maxTitleLength はタイトルの最大文字数。
const maxTitleLength = 200

// SearchClient は全文検索インデックスへの問い合わせインターフェース。
type SearchClient interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

// IndexNotifier は出品の変更を検索インデックスの同期ワーカーへ通知する。
type IndexNotifier interface {
	NotifyUpsert(ctx context.Context, postingID int64)
	NotifyDelete(ctx context.Context, postingID int64)
}

// MediaCleaner は出品削除時の画像ファイル削除インターフェース。
type MediaCleaner interface {
	DeleteImages(ctx context.Context, filenames []string)
}

// MetricsRecorder は出品操作のメトリクス記録インターフェース。
type MetricsRecorder interface {
	IncPostingsCreated()
	IncSearchQueries()
	IncSearchFailures()
}

// Service は出品機能のサービス。
type Service struct {
	postingRepo  repository.PostingRepository
	categoryRepo repository.CategoryRepository
	searchClient SearchClient
	notifier     IndexNotifier
	media        MediaCleaner
	sanitizer    security.ContentSanitizerService
	metrics      MetricsRecorder
	logger       *slog.Logger
	perPage      int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	postingRepo repository.PostingRepository,
	categoryRepo repository.CategoryRepository,
	searchClient SearchClient,
	notifier IndexNotifier,
	media MediaCleaner,
	sanitizer security.ContentSanitizerService,
	metrics MetricsRecorder,
	logger *slog.Logger,
	perPage int,
) *Service {
	return &Service{
		postingRepo:  postingRepo,
		categoryRepo: categoryRepo,
		searchClient: searchClient,
		notifier:     notifier,
		media:        media,
		sanitizer:    sanitizer,
		metrics:      metrics,
		logger:       logger,
		perPage:      perPage,
	}
}

// ListRequest は出品一覧・検索のリクエスト条件。
type ListRequest struct {
	ID       *int64
	Owner    *string
	Category *int
	Cost     *float64
	MaxCost  *float64
	Keywords string
	Sort     model.SortKey
	Page     int
	PerPage  int
}

// PageResult は一覧・検索の1ページ分の結果。
// 閲覧系・検索系の両方が同一の形を返す。
type PageResult struct {
	Postings []model.PostingWithOwner
	NumPages int
}

// GetPostings は条件に合致する出品の1ページ分を返す。
// keywordsが指定された場合は検索インデックス経由、
// それ以外はリレーショナルストアの絞り込み経由で取得する。
func (s *Service) GetPostings(ctx context.Context, req ListRequest) (*PageResult, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage < 1 {
		perPage = s.perPage
	}

	if req.Keywords != "" {
		return s.searchPostings(ctx, req, page, perPage)
	}

	filter := repository.PostingFilter{
		ID:       req.ID,
		Owner:    req.Owner,
		Category: req.Category,
		Cost:     req.Cost,
		MaxCost:  req.MaxCost,
	}
	postings, numPages, err := s.postingRepo.List(ctx, filter, req.Sort, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("出品一覧の取得に失敗しました: %w", err)
	}
	return &PageResult{Postings: postings, NumPages: numPages}, nil
}

// searchPostings は検索インデックスに問い合わせ、ヒットしたIDを
// ストアから取り出してランキング順に並べ直す。
// インデックスの返却順が一覧の正であり、ストアのソート順は使用しない。
func (s *Service) searchPostings(ctx context.Context, req ListRequest, page, perPage int) (*PageResult, error) {
	s.metrics.IncSearchQueries()

	result, err := s.searchClient.Search(ctx, search.Query{
		Keywords: req.Keywords,
		Owner:    req.Owner,
		Category: req.Category,
		Sort:     req.Sort,
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		s.metrics.IncSearchFailures()
		return nil, model.NewSearchFailedError(err.Error())
	}

	if len(result.IDs) == 0 {
		return &PageResult{Postings: []model.PostingWithOwner{}, NumPages: 0}, nil
	}

	rows, err := s.postingRepo.FindByIDs(ctx, result.IDs)
	if err != nil {
		return nil, fmt.Errorf("検索結果の出品取得に失敗しました: %w", err)
	}

	// インデックスとストアは結果整合のため、インデックスが返したIDが
	// ストアに存在しないことがある。存在する行のみランキング順で返す。
	byID := make(map[int64]model.PostingWithOwner, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	ordered := make([]model.PostingWithOwner, 0, len(result.IDs))
	for _, id := range result.IDs {
		if row, ok := byID[id]; ok {
			ordered = append(ordered, row)
		}
	}

	numPages := (result.Total + perPage - 1) / perPage
	return &PageResult{Postings: ordered, NumPages: numPages}, nil
}

// CreateInput は出品作成の入力。CostとCategoryはフォーム値の文字列のまま受け取り、
// サービス側で検証付きのパースを行う。
type CreateInput struct {
	Title       string
	Description string
	Cost        string
	Category    string
	Images      []string
}

// Create は新規出品を作成する。
// 所有者は常に認証済みの呼び出し元であり、入力からは受け取らない。
// 同一の(owner, title, description, category)の出品が既に存在する場合は
// 新規作成せず既存の行を返す（二重送信ガード）。
func (s *Service) Create(ctx context.Context, owner string, in CreateInput) (*model.Posting, error) {
	title := s.sanitizer.Sanitize(in.Title)
	description := s.sanitizer.Sanitize(in.Description)

	if title == "" {
		return nil, model.NewValidationError("タイトルは必須です")
	}
	if len([]rune(title)) > maxTitleLength {
		return nil, model.NewValidationError(fmt.Sprintf("タイトルは%d文字以内にしてください", maxTitleLength))
	}

	cost, err := parseCost(in.Cost)
	if err != nil {
		return nil, err
	}

	category, err := s.parseCategory(ctx, in.Category)
	if err != nil {
		return nil, err
	}

	existing, err := s.postingRepo.FindDuplicate(ctx, owner, title, description, category)
	if err != nil {
		return nil, fmt.Errorf("重複チェックに失敗しました: %w", err)
	}
	if existing != nil {
		// 二重送信で既にアップロード済みの画像は残さない
		if len(in.Images) > 0 {
			s.media.DeleteImages(ctx, in.Images)
		}
		s.logger.Info("重複した出品リクエストを既存の行に解決しました",
			slog.Int64("posting_id", existing.ID),
			slog.String("owner", owner),
		)
		return existing, nil
	}

	posting := &model.Posting{
		Owner:       owner,
		Title:       title,
		Description: description,
		Cost:        cost,
		Category:    category,
		Timestamp:   time.Now().UTC(),
		Images:      in.Images,
	}
	if err := s.postingRepo.Insert(ctx, posting); err != nil {
		return nil, fmt.Errorf("出品の作成に失敗しました: %w", err)
	}

	s.metrics.IncPostingsCreated()
	s.notifier.NotifyUpsert(ctx, posting.ID)

	s.logger.Info("出品を作成しました",
		slog.Int64("posting_id", posting.ID),
		slog.String("owner", owner),
		slog.Int("category", category),
	)
	return posting, nil
}

// UpdateInput は出品更新の入力。nilのフィールドは変更されない。
// CostとCategoryは検証のため文字列のまま受け取る。
type UpdateInput struct {
	Title       *string
	Description *string
	Cost        *string
	Category    *string
}

// Update は呼び出し元が所有する出品を部分更新する。
// 省略されたフィールドは変更されず、timestampは変更の有無に関わらず更新される。
// (id, owner)に一致する行がない場合、存在しないIDと他人の出品は
// 区別せずPOSTING_NOT_FOUNDを返す。
func (s *Service) Update(ctx context.Context, owner string, id int64, in UpdateInput) (*model.Posting, error) {
	patch := repository.PostingPatch{}

	if in.Title != nil {
		title := s.sanitizer.Sanitize(*in.Title)
		if title == "" {
			return nil, model.NewValidationError("タイトルは必須です")
		}
		if len([]rune(title)) > maxTitleLength {
			return nil, model.NewValidationError(fmt.Sprintf("タイトルは%d文字以内にしてください", maxTitleLength))
		}
		patch.Title = &title
	}
	if in.Description != nil {
		description := s.sanitizer.Sanitize(*in.Description)
		patch.Description = &description
	}
	if in.Cost != nil {
		cost, err := parseCost(*in.Cost)
		if err != nil {
			return nil, err
		}
		patch.Cost = &cost
	}
	if in.Category != nil {
		category, err := s.parseCategory(ctx, *in.Category)
		if err != nil {
			return nil, err
		}
		patch.Category = &category
	}

	updated, err := s.postingRepo.Update(ctx, id, owner, patch, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("出品の更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewPostingNotFoundError(id)
	}

	s.notifier.NotifyUpsert(ctx, id)

	s.logger.Info("出品を更新しました",
		slog.Int64("posting_id", id),
		slog.String("owner", owner),
	)
	return updated, nil
}

// Delete は呼び出し元が所有する出品を削除する。
// 行が存在しない場合はPOSTING_NOT_FOUND、存在するが所有者でない場合は
// OWNERSHIPエラーを返す。紐づく画像とサムネイルはベストエフォートで削除する。
func (s *Service) Delete(ctx context.Context, owner string, id int64) error {
	posting, err := s.postingRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	if posting == nil {
		return model.NewPostingNotFoundError(id)
	}
	if posting.Owner != owner {
		return model.NewOwnershipError()
	}

	if err := s.postingRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("出品の削除に失敗しました: %w", err)
	}

	if len(posting.Images) > 0 {
		s.media.DeleteImages(ctx, posting.Images)
	}
	s.notifier.NotifyDelete(ctx, id)

	s.logger.Info("出品を削除しました",
		slog.Int64("posting_id", id),
		slog.String("owner", owner),
	)
	return nil
}

// AttachImages は作成済みの出品に画像ファイル名リストを紐づける。
func (s *Service) AttachImages(ctx context.Context, id int64, images []string) error {
	if err := s.postingRepo.UpdateImages(ctx, id, images); err != nil {
		return fmt.Errorf("画像リストの更新に失敗しました: %w", err)
	}
	s.notifier.NotifyUpsert(ctx, id)
	return nil
}

// ListCategories は全カテゴリをID昇順で返す。
func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	return categories, nil
}

// parseCost はフォーム値の文字列を検証付きでパースする。
// NaN・無限大・負数・数値以外はすべて検証エラーとして拒否する。
func parseCost(raw string) (float64, error) {
	if raw == "" {
		return 0, model.NewValidationError("価格は必須です")
	}
	cost, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, model.NewValidationError("価格は数値で指定してください")
	}
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return 0, model.NewValidationError("価格は有限の数値で指定してください")
	}
	if cost < 0 {
		return 0, model.NewValidationError("価格は0以上で指定してください")
	}
	return cost, nil
}

// parseCategory はカテゴリIDをパースし、実在するカテゴリかを検証する。
func (s *Service) parseCategory(ctx context.Context, raw string) (int, error) {
	if raw == "" {
		return 0, model.NewValidationError("カテゴリは必須です")
	}
	category, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewValidationError("カテゴリは整数で指定してください")
	}
	exists, err := s.categoryRepo.Exists(ctx, category)
	if err != nil {
		return 0, fmt.Errorf("カテゴリの確認に失敗しました: %w", err)
	}
	if !exists {
		return 0, model.NewCategoryNotFoundError(category)
	}
	return category, nil
}
