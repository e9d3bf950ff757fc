package posting

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shoichi/unimart/internal/model"
	"github.com/shoichi/unimart/internal/repository"
	"github.com/shoichi/unimart/internal/search"
	"github.com/shoichi/unimart/internal/security"
)

// mockPostingRepo はPostingRepositoryのテスト用モック。
type mockPostingRepo struct {
	listFunc          func(ctx context.Context, filter repository.PostingFilter, sort model.SortKey, page, perPage int) ([]model.PostingWithOwner, int, error)
	findByIDFunc      func(ctx context.Context, id int64) (*model.Posting, error)
	findByIDsFunc     func(ctx context.Context, ids []int64) ([]model.PostingWithOwner, error)
	findDuplicateFunc func(ctx context.Context, owner, title, description string, category int) (*model.Posting, error)
	insertFunc        func(ctx context.Context, posting *model.Posting) error
	updateFunc        func(ctx context.Context, id int64, owner string, patch repository.PostingPatch, now time.Time) (*model.Posting, error)
	updateImagesFunc  func(ctx context.Context, id int64, images []string) error
	deleteFunc        func(ctx context.Context, id int64) error
}

func (m *mockPostingRepo) List(ctx context.Context, filter repository.PostingFilter, sort model.SortKey, page, perPage int) ([]model.PostingWithOwner, int, error) {
	return m.listFunc(ctx, filter, sort, page, perPage)
}

func (m *mockPostingRepo) FindByID(ctx context.Context, id int64) (*model.Posting, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockPostingRepo) FindByIDs(ctx context.Context, ids []int64) ([]model.PostingWithOwner, error) {
	return m.findByIDsFunc(ctx, ids)
}

func (m *mockPostingRepo) FindDuplicate(ctx context.Context, owner, title, description string, category int) (*model.Posting, error) {
	return m.findDuplicateFunc(ctx, owner, title, description, category)
}

func (m *mockPostingRepo) Insert(ctx context.Context, posting *model.Posting) error {
	return m.insertFunc(ctx, posting)
}

func (m *mockPostingRepo) Update(ctx context.Context, id int64, owner string, patch repository.PostingPatch, now time.Time) (*model.Posting, error) {
	return m.updateFunc(ctx, id, owner, patch, now)
}

func (m *mockPostingRepo) UpdateImages(ctx context.Context, id int64, images []string) error {
	return m.updateImagesFunc(ctx, id, images)
}

func (m *mockPostingRepo) Delete(ctx context.Context, id int64) error {
	return m.deleteFunc(ctx, id)
}

// mockCategoryRepo はCategoryRepositoryのテスト用モック。
type mockCategoryRepo struct {
	existsFunc func(ctx context.Context, id int) (bool, error)
	listFunc   func(ctx context.Context) ([]model.Category, error)
}

func (m *mockCategoryRepo) Exists(ctx context.Context, id int) (bool, error) {
	return m.existsFunc(ctx, id)
}

func (m *mockCategoryRepo) List(ctx context.Context) ([]model.Category, error) {
	return m.listFunc(ctx)
}

// mockSearchClient はSearchClientのテスト用モック。
type mockSearchClient struct {
	searchFunc func(ctx context.Context, q search.Query) (*search.Result, error)
}

func (m *mockSearchClient) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	return m.searchFunc(ctx, q)
}

// mockNotifier はIndexNotifierのテスト用モック。
type mockNotifier struct {
	upserts []int64
	deletes []int64
}

func (m *mockNotifier) NotifyUpsert(_ context.Context, id int64) { m.upserts = append(m.upserts, id) }
func (m *mockNotifier) NotifyDelete(_ context.Context, id int64) { m.deletes = append(m.deletes, id) }

// mockMedia はMediaCleanerのテスト用モック。
type mockMedia struct {
	deleted [][]string
}

func (m *mockMedia) DeleteImages(_ context.Context, filenames []string) {
	m.deleted = append(m.deleted, filenames)
}

// mockMetrics はMetricsRecorderのテスト用モック。
type mockMetrics struct {
	created        int
	searchQueries  int
	searchFailures int
}

func (m *mockMetrics) IncPostingsCreated() { m.created++ }
func (m *mockMetrics) IncSearchQueries()   { m.searchQueries++ }
func (m *mockMetrics) IncSearchFailures()  { m.searchFailures++ }

type serviceDeps struct {
	postingRepo  *mockPostingRepo
	categoryRepo *mockCategoryRepo
	searchClient *mockSearchClient
	notifier     *mockNotifier
	media        *mockMedia
	metrics      *mockMetrics
}

func newTestService(deps serviceDeps) *Service {
	if deps.postingRepo == nil {
		deps.postingRepo = &mockPostingRepo{}
	}
	if deps.categoryRepo == nil {
		deps.categoryRepo = &mockCategoryRepo{
			existsFunc: func(context.Context, int) (bool, error) { return true, nil },
		}
	}
	if deps.searchClient == nil {
		deps.searchClient = &mockSearchClient{}
	}
	if deps.notifier == nil {
		deps.notifier = &mockNotifier{}
	}
	if deps.media == nil {
		deps.media = &mockMedia{}
	}
	if deps.metrics == nil {
		deps.metrics = &mockMetrics{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(
		deps.postingRepo,
		deps.categoryRepo,
		deps.searchClient,
		deps.notifier,
		deps.media,
		security.NewContentSanitizer(),
		deps.metrics,
		logger,
		20,
	)
}

func withOwner(p model.Posting, email string) model.PostingWithOwner {
	return model.PostingWithOwner{Posting: p, Email: email}
}

func TestGetPostingsBrowseBranch(t *testing.T) {
	var gotFilter repository.PostingFilter
	var gotPage, gotPerPage int
	var gotSort model.SortKey

	postingRepo := &mockPostingRepo{
		listFunc: func(_ context.Context, filter repository.PostingFilter, sort model.SortKey, page, perPage int) ([]model.PostingWithOwner, int, error) {
			gotFilter, gotSort, gotPage, gotPerPage = filter, sort, page, perPage
			return []model.PostingWithOwner{
				withOwner(model.Posting{ID: 1, Title: "自転車"}, "a@example.com"),
			}, 3, nil
		},
	}
	service := newTestService(serviceDeps{postingRepo: postingRepo})

	category := 2
	result, err := service.GetPostings(context.Background(), ListRequest{
		Category: &category,
		Sort:     model.SortNewest,
		Page:     2,
		PerPage:  10,
	})
	if err != nil {
		t.Fatalf("GetPostings() error = %v", err)
	}

	if gotFilter.Category == nil || *gotFilter.Category != 2 {
		t.Errorf("filter.Category = %v, want 2", gotFilter.Category)
	}
	if gotSort != model.SortNewest {
		t.Errorf("sort = %v, want newest", gotSort)
	}
	if gotPage != 2 || gotPerPage != 10 {
		t.Errorf("page, perPage = %d, %d, want 2, 10", gotPage, gotPerPage)
	}
	if result.NumPages != 3 {
		t.Errorf("NumPages = %d, want 3", result.NumPages)
	}
	if len(result.Postings) != 1 || result.Postings[0].Email != "a@example.com" {
		t.Errorf("postings = %+v", result.Postings)
	}
}

func TestGetPostingsClampsPageAndPerPage(t *testing.T) {
	var gotPage, gotPerPage int
	postingRepo := &mockPostingRepo{
		listFunc: func(_ context.Context, _ repository.PostingFilter, _ model.SortKey, page, perPage int) ([]model.PostingWithOwner, int, error) {
			gotPage, gotPerPage = page, perPage
			return nil, 0, nil
		},
	}
	service := newTestService(serviceDeps{postingRepo: postingRepo})

	if _, err := service.GetPostings(context.Background(), ListRequest{Page: -3, PerPage: 0}); err != nil {
		t.Fatalf("GetPostings() error = %v", err)
	}
	if gotPage != 1 {
		t.Errorf("page = %d, want 1", gotPage)
	}
	if gotPerPage != 20 {
		t.Errorf("perPage = %d, want デフォルトの20", gotPerPage)
	}
}

func TestGetPostingsSearchBranchOrdersByRank(t *testing.T) {
	searchClient := &mockSearchClient{
		searchFunc: func(_ context.Context, q search.Query) (*search.Result, error) {
			if q.Keywords != "自転車" {
				t.Errorf("keywords = %q", q.Keywords)
			}
			return &search.Result{IDs: []int64{5, 2, 9}, Total: 45}, nil
		},
	}
	postingRepo := &mockPostingRepo{
		findByIDsFunc: func(_ context.Context, ids []int64) ([]model.PostingWithOwner, error) {
			// ストアはID順で返す。ランキング順への並べ替えはサービスの責務。
			return []model.PostingWithOwner{
				withOwner(model.Posting{ID: 2}, "b@example.com"),
				withOwner(model.Posting{ID: 5}, "a@example.com"),
				withOwner(model.Posting{ID: 9}, "c@example.com"),
			}, nil
		},
	}
	metrics := &mockMetrics{}
	service := newTestService(serviceDeps{postingRepo: postingRepo, searchClient: searchClient, metrics: metrics})

	result, err := service.GetPostings(context.Background(), ListRequest{
		Keywords: "自転車",
		Page:     1,
		PerPage:  10,
	})
	if err != nil {
		t.Fatalf("GetPostings() error = %v", err)
	}

	wantOrder := []int64{5, 2, 9}
	if len(result.Postings) != len(wantOrder) {
		t.Fatalf("len(postings) = %d, want %d", len(result.Postings), len(wantOrder))
	}
	for i, want := range wantOrder {
		if result.Postings[i].ID != want {
			t.Errorf("postings[%d].ID = %d, want %d", i, result.Postings[i].ID, want)
		}
	}
	// ceil(45/10) = 5
	if result.NumPages != 5 {
		t.Errorf("NumPages = %d, want 5", result.NumPages)
	}
	if metrics.searchQueries != 1 {
		t.Errorf("searchQueries = %d, want 1", metrics.searchQueries)
	}
}

func TestGetPostingsSearchSkipsMissingRows(t *testing.T) {
	searchClient := &mockSearchClient{
		searchFunc: func(context.Context, search.Query) (*search.Result, error) {
			return &search.Result{IDs: []int64{5, 2, 9}, Total: 3}, nil
		},
	}
	postingRepo := &mockPostingRepo{
		findByIDsFunc: func(context.Context, []int64) ([]model.PostingWithOwner, error) {
			// ID=2はストアから削除済み（インデックスとの結果整合の遅延）
			return []model.PostingWithOwner{
				withOwner(model.Posting{ID: 5}, "a@example.com"),
				withOwner(model.Posting{ID: 9}, "c@example.com"),
			}, nil
		},
	}
	service := newTestService(serviceDeps{postingRepo: postingRepo, searchClient: searchClient})

	result, err := service.GetPostings(context.Background(), ListRequest{Keywords: "本", PerPage: 10})
	if err != nil {
		t.Fatalf("GetPostings() error = %v", err)
	}
	if len(result.Postings) != 2 || result.Postings[0].ID != 5 || result.Postings[1].ID != 9 {
		t.Errorf("postings = %+v", result.Postings)
	}
}

func TestGetPostingsSearchZeroHits(t *testing.T) {
	searchClient := &mockSearchClient{
		searchFunc: func(context.Context, search.Query) (*search.Result, error) {
			return &search.Result{IDs: nil, Total: 0}, nil
		},
	}
	service := newTestService(serviceDeps{searchClient: searchClient})

	result, err := service.GetPostings(context.Background(), ListRequest{Keywords: "存在しない語"})
	if err != nil {
		t.Fatalf("GetPostings() error = %v", err)
	}
	if result.Postings == nil || len(result.Postings) != 0 {
		t.Errorf("postings = %v, want 空スライス", result.Postings)
	}
	if result.NumPages != 0 {
		t.Errorf("NumPages = %d, want 0", result.NumPages)
	}
}

func TestGetPostingsSearchFailure(t *testing.T) {
	searchClient := &mockSearchClient{
		searchFunc: func(context.Context, search.Query) (*search.Result, error) {
			return nil, errors.New("connection refused")
		},
	}
	metrics := &mockMetrics{}
	service := newTestService(serviceDeps{searchClient: searchClient, metrics: metrics})

	_, err := service.GetPostings(context.Background(), ListRequest{Keywords: "本"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSearchFailed {
		t.Fatalf("error = %v, want SEARCH_FAILED", err)
	}
	if metrics.searchFailures != 1 {
		t.Errorf("searchFailures = %d, want 1", metrics.searchFailures)
	}
}

func TestCreatePosting(t *testing.T) {
	var inserted *model.Posting
	postingRepo := &mockPostingRepo{
		findDuplicateFunc: func(context.Context, string, string, string, int) (*model.Posting, error) {
			return nil, nil
		},
		insertFunc: func(_ context.Context, p *model.Posting) error {
			p.ID = 42
			inserted = p
			return nil
		},
	}
	notifier := &mockNotifier{}
	metrics := &mockMetrics{}
	service := newTestService(serviceDeps{postingRepo: postingRepo, notifier: notifier, metrics: metrics})

	posting, err := service.Create(context.Background(), "owner-sub", CreateInput{
		Title:       "ロードバイク",
		Description: "通学用に使っていました",
		Cost:        "15000",
		Category:    "3",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if posting.ID != 42 {
		t.Errorf("ID = %d, want 42", posting.ID)
	}
	if inserted.Owner != "owner-sub" {
		t.Errorf("Owner = %q, want 認証済み呼び出し元", inserted.Owner)
	}
	if inserted.Cost != 15000 {
		t.Errorf("Cost = %v, want 15000", inserted.Cost)
	}
	if inserted.Category != 3 {
		t.Errorf("Category = %d, want 3", inserted.Category)
	}
	if inserted.Timestamp.IsZero() {
		t.Error("Timestampが設定されていません")
	}
	if len(notifier.upserts) != 1 || notifier.upserts[0] != 42 {
		t.Errorf("upserts = %v, want [42]", notifier.upserts)
	}
	if metrics.created != 1 {
		t.Errorf("created = %d, want 1", metrics.created)
	}
}

func TestCreatePostingSanitizesText(t *testing.T) {
	var inserted *model.Posting
	postingRepo := &mockPostingRepo{
		findDuplicateFunc: func(context.Context, string, string, string, int) (*model.Posting, error) {
			return nil, nil
		},
		insertFunc: func(_ context.Context, p *model.Posting) error {
			inserted = p
			return nil
		},
	}
	service := newTestService(serviceDeps{postingRepo: postingRepo})

	_, err := service.Create(context.Background(), "owner-sub", CreateInput{
		Title:       `<script>alert(1)</script>教科書`,
		Description: `<img src=x onerror=alert(1)>微積分の教科書`,
		Cost:        "500",
		Category:    "1",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if inserted.Title != "教科書" {
		t.Errorf("Title = %q, want サニタイズ済み", inserted.Title)
	}
	if inserted.Description != "微積分の教科書" {
		t.Errorf("Description = %q, want サニタイズ済み", inserted.Description)
	}
}

func TestCreatePostingDuplicateReturnsExisting(t *testing.T) {
	existing := &model.Posting{ID: 7, Owner: "owner-sub", Title: "教科書"}
	insertCalled := false
	postingRepo := &mockPostingRepo{
		findDuplicateFunc: func(_ context.Context, owner, title, description string, category int) (*model.Posting, error) {
			if owner != "owner-sub" || title != "教科書" || description != "新品同様" || category != 1 {
				t.Errorf("重複チェックの条件が不正: %s %s %s %d", owner, title, description, category)
			}
			return existing, nil
		},
		insertFunc: func(context.Context, *model.Posting) error {
			insertCalled = true
			return nil
		},
	}
	notifier := &mockNotifier{}
	metrics := &mockMetrics{}
	media := &mockMedia{}
	service := newTestService(serviceDeps{postingRepo: postingRepo, notifier: notifier, metrics: metrics, media: media})

	posting, err := service.Create(context.Background(), "owner-sub", CreateInput{
		Title:       "教科書",
		Description: "新品同様",
		Cost:        "500",
		Category:    "1",
		Images:      []string{"dup.jpg"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if posting.ID != 7 {
		t.Errorf("ID = %d, want 既存の7", posting.ID)
	}
	if insertCalled {
		t.Error("重複時にInsertが呼ばれました")
	}
	if len(notifier.upserts) != 0 {
		t.Errorf("重複時にイベントが配信されました: %v", notifier.upserts)
	}
	if metrics.created != 0 {
		t.Errorf("重複時にcreatedが増加しました: %d", metrics.created)
	}
	if len(media.deleted) != 1 || media.deleted[0][0] != "dup.jpg" {
		t.Errorf("重複時にアップロード済み画像が削除されていません: %v", media.deleted)
	}
}

func TestCreatePostingValidation(t *testing.T) {
	tests := []struct {
		name     string
		input    CreateInput
		wantCode string
	}{
		{
			name:     "タイトル空",
			input:    CreateInput{Title: "", Cost: "100", Category: "1"},
			wantCode: model.ErrCodeValidation,
		},
		{
			name:     "タイトルがタグのみ",
			input:    CreateInput{Title: "<script>x</script>", Cost: "100", Category: "1"},
			wantCode: model.ErrCodeValidation,
		},
		{
			name:     "価格空",
			input:    CreateInput{Title: "本", Cost: "", Category: "1"},
			wantCode: model.ErrCodeValidation,
		},
		{
			name:     "価格が数値でない",
			input:    CreateInput{Title: "本", Cost: "abc", Category: "1"},
			wantCode: model.ErrCodeValidation,
		},
		{
			name:     "価格がNaN",
			input:    CreateInput{Title: "本", Cost: "NaN", Category: "1"},
			wantCode: model.ErrCodeValidation,
		},
		{
			name:     "価格が無限大",
			input:    CreateInput{Title: "本", Cost: "Inf", Category: "1"},
			wantCode: model.ErrCodeValidation,
		},
		{
			name:     "価格が負数",
			input:    CreateInput{Title: "本", Cost: "-100", Category: "1"},
			wantCode: model.ErrCodeValidation,
		},
		{
			name:     "カテゴリが整数でない",
			input:    CreateInput{Title: "本", Cost: "100", Category: "books"},
			wantCode: model.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestService(serviceDeps{})
			_, err := service.Create(context.Background(), "owner-sub", tt.input)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want APIError", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantCode)
			}
		})
	}
}

func TestCreatePostingUnknownCategory(t *testing.T) {
	categoryRepo := &mockCategoryRepo{
		existsFunc: func(context.Context, int) (bool, error) { return false, nil },
	}
	service := newTestService(serviceDeps{categoryRepo: categoryRepo})

	_, err := service.Create(context.Background(), "owner-sub", CreateInput{
		Title:    "本",
		Cost:     "100",
		Category: "999",
	})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeCategoryNotFound {
		t.Fatalf("error = %v, want CATEGORY_NOT_FOUND", err)
	}
}

func TestUpdatePosting(t *testing.T) {
	var gotPatch repository.PostingPatch
	var gotOwner string
	postingRepo := &mockPostingRepo{
		updateFunc: func(_ context.Context, id int64, owner string, patch repository.PostingPatch, now time.Time) (*model.Posting, error) {
			gotOwner, gotPatch = owner, patch
			return &model.Posting{ID: id, Owner: owner, Title: *patch.Title, Timestamp: now}, nil
		},
	}
	notifier := &mockNotifier{}
	service := newTestService(serviceDeps{postingRepo: postingRepo, notifier: notifier})

	title := "値下げしました"
	cost := "8000"
	updated, err := service.Update(context.Background(), "owner-sub", 5, UpdateInput{
		Title: &title,
		Cost:  &cost,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if gotOwner != "owner-sub" {
		t.Errorf("owner = %q", gotOwner)
	}
	if gotPatch.Title == nil || *gotPatch.Title != "値下げしました" {
		t.Errorf("patch.Title = %v", gotPatch.Title)
	}
	if gotPatch.Cost == nil || *gotPatch.Cost != 8000 {
		t.Errorf("patch.Cost = %v", gotPatch.Cost)
	}
	if gotPatch.Description != nil || gotPatch.Category != nil {
		t.Error("省略したフィールドがpatchに含まれています")
	}
	if updated.ID != 5 {
		t.Errorf("ID = %d, want 5", updated.ID)
	}
	if len(notifier.upserts) != 1 || notifier.upserts[0] != 5 {
		t.Errorf("upserts = %v, want [5]", notifier.upserts)
	}
}

func TestUpdatePostingNotFound(t *testing.T) {
	postingRepo := &mockPostingRepo{
		updateFunc: func(context.Context, int64, string, repository.PostingPatch, time.Time) (*model.Posting, error) {
			// 存在しないIDと他人の出品はどちらもnil
			return nil, nil
		},
	}
	service := newTestService(serviceDeps{postingRepo: postingRepo})

	_, err := service.Update(context.Background(), "other-sub", 5, UpdateInput{})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePostingNotFound {
		t.Fatalf("error = %v, want POSTING_NOT_FOUND", err)
	}
}

func TestUpdatePostingInvalidCost(t *testing.T) {
	service := newTestService(serviceDeps{})

	cost := "NaN"
	_, err := service.Update(context.Background(), "owner-sub", 5, UpdateInput{Cost: &cost})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Fatalf("error = %v, want VALIDATION_FAILED", err)
	}
}

func TestDeletePosting(t *testing.T) {
	deleteCalled := false
	postingRepo := &mockPostingRepo{
		findByIDFunc: func(_ context.Context, id int64) (*model.Posting, error) {
			return &model.Posting{ID: id, Owner: "owner-sub", Images: []string{"abc.jpg", "def.jpg"}}, nil
		},
		deleteFunc: func(context.Context, int64) error {
			deleteCalled = true
			return nil
		},
	}
	notifier := &mockNotifier{}
	media := &mockMedia{}
	service := newTestService(serviceDeps{postingRepo: postingRepo, notifier: notifier, media: media})

	if err := service.Delete(context.Background(), "owner-sub", 5); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !deleteCalled {
		t.Error("Deleteが呼ばれていません")
	}
	if len(media.deleted) != 1 || len(media.deleted[0]) != 2 {
		t.Errorf("media.deleted = %v, want 2件の画像", media.deleted)
	}
	if len(notifier.deletes) != 1 || notifier.deletes[0] != 5 {
		t.Errorf("deletes = %v, want [5]", notifier.deletes)
	}
}

func TestDeletePostingNotFound(t *testing.T) {
	postingRepo := &mockPostingRepo{
		findByIDFunc: func(context.Context, int64) (*model.Posting, error) { return nil, nil },
	}
	service := newTestService(serviceDeps{postingRepo: postingRepo})

	err := service.Delete(context.Background(), "owner-sub", 5)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePostingNotFound {
		t.Fatalf("error = %v, want POSTING_NOT_FOUND", err)
	}
}

func TestDeletePostingNotOwner(t *testing.T) {
	deleteCalled := false
	postingRepo := &mockPostingRepo{
		findByIDFunc: func(_ context.Context, id int64) (*model.Posting, error) {
			return &model.Posting{ID: id, Owner: "owner-sub"}, nil
		},
		deleteFunc: func(context.Context, int64) error {
			deleteCalled = true
			return nil
		},
	}
	service := newTestService(serviceDeps{postingRepo: postingRepo})

	err := service.Delete(context.Background(), "other-sub", 5)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeOwnership {
		t.Fatalf("error = %v, want NOT_OWNER", err)
	}
	if deleteCalled {
		t.Error("非所有者の削除でDeleteが呼ばれました")
	}
}

func TestAttachImages(t *testing.T) {
	var gotID int64
	var gotImages []string
	postingRepo := &mockPostingRepo{
		updateImagesFunc: func(_ context.Context, id int64, images []string) error {
			gotID, gotImages = id, images
			return nil
		},
	}
	notifier := &mockNotifier{}
	service := newTestService(serviceDeps{postingRepo: postingRepo, notifier: notifier})

	if err := service.AttachImages(context.Background(), 3, []string{"x.jpg"}); err != nil {
		t.Fatalf("AttachImages() error = %v", err)
	}
	if gotID != 3 || len(gotImages) != 1 {
		t.Errorf("id, images = %d, %v", gotID, gotImages)
	}
	if len(notifier.upserts) != 1 {
		t.Errorf("upserts = %v, want 1件", notifier.upserts)
	}
}
