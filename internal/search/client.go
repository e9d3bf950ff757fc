// Package search は外部全文検索インデックスへの問い合わせを提供する。
// インデックスの投入・同期は外部のインデクサプロセスが担当し、
// 本パッケージは読み取り専用のクエリクライアントのみを提供する。
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shoichi/unimart/internal/model"
)

const (
	// indexName は出品を格納する検索インデックス名。
	indexName = "postings"
)

// Query は検索インデックスへの問い合わせ条件。
type Query struct {
	Keywords string
	Owner    *string // 所有者での絞り込み（任意）
	Category *int    // カテゴリでの絞り込み（任意）
	Sort     model.SortKey
	Page     int // 1始まり
	PerPage  int
}

// Result は検索インデックスからの応答。
// IDsはランキング順。この順序が一覧表示の正とされる。
type Result struct {
	IDs   []int64
	Total int // 総ヒット数の推定値
}

// Client は検索インデックスサービスのHTTP APIクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// searchRequest は検索エンドポイントへのリクエストボディ。
type searchRequest struct {
	Q                    string   `json:"q"`
	Filter               string   `json:"filter,omitempty"`
	Sort                 []string `json:"sort,omitempty"`
	Limit                int      `json:"limit"`
	Offset               int      `json:"offset"`
	AttributesToRetrieve []string `json:"attributesToRetrieve"`
}

// searchResponse は検索エンドポイントのレスポンス。
type searchResponse struct {
	Hits []struct {
		ID int64 `json:"id"`
	} `json:"hits"`
	EstimatedTotalHits int `json:"estimatedTotalHits"`
}

// sortAttribute はSortKeyをインデックスのソート属性に変換する。
func sortAttribute(sort model.SortKey) string {
	switch sort {
	case model.SortNewest:
		return "timestamp:desc"
	case model.SortOldest:
		return "timestamp:asc"
	case model.SortHighestCost:
		return "cost:desc"
	case model.SortLowestCost:
		return "cost:asc"
	default:
		return "timestamp:asc"
	}
}

// buildFilter はowner・categoryの絞り込み条件をフィルタ式に変換する。
func buildFilter(q Query) string {
	var clauses []string
	if q.Owner != nil {
		clauses = append(clauses, fmt.Sprintf("owner = %q", *q.Owner))
	}
	if q.Category != nil {
		clauses = append(clauses, fmt.Sprintf("category = %d", *q.Category))
	}
	return strings.Join(clauses, " AND ")
}

// Search はキーワード検索を実行し、ランキング順のIDと総ヒット数を返す。
// ヒット0件はエラーではなく空の結果として返す。
// エラーはクエリ機構自体の失敗（接続不可・構文エラー等）のみ。
func (c *Client) Search(ctx context.Context, q Query) (*Result, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		return nil, fmt.Errorf("perPageは1以上が必要です: %d", q.PerPage)
	}

	reqBody := searchRequest{
		Q:                    q.Keywords,
		Filter:               buildFilter(q),
		Sort:                 []string{sortAttribute(q.Sort)},
		Limit:                q.PerPage,
		Offset:               (q.Page - 1) * q.PerPage,
		AttributesToRetrieve: []string{"id"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("検索リクエストの構築に失敗しました: %w", err)
	}

	endpoint := fmt.Sprintf("%s/indexes/%s/search", c.baseURL, indexName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("検索インデックスへの問い合わせに失敗しました",
			slog.String("error", err.Error()),
			slog.String("keywords", q.Keywords),
		)
		return nil, fmt.Errorf("検索インデックスへの問い合わせに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("検索インデックスがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return nil, fmt.Errorf("検索インデックスがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var searchResp searchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	ids := make([]int64, 0, len(searchResp.Hits))
	for _, hit := range searchResp.Hits {
		ids = append(ids, hit.ID)
	}

	return &Result{
		IDs:   ids,
		Total: searchResp.EstimatedTotalHits,
	}, nil
}
