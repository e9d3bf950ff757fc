// Package model はドメインモデルを定義する。
package model

import "time"

// Category は出品物のカテゴリを表す。静的な参照データ。
type Category struct {
	ID   int
	Name string
}

// Posting は1件の出品（クラシファイド広告）を表す。
type Posting struct {
	ID          int64
	Owner       string // users.idへの外部キー（Google subject id）
	Title       string
	Description string
	Cost        float64
	Category    int
	Timestamp   time.Time // 作成・最終更新時刻。更新成功のたびにサーバー側で更新される
	Images      []string  // 保存済み画像ファイル名の順序付きリスト
}

// PostingWithOwner は出品と所有者のメールアドレスを結合したモデル。
// usersテーブルとJOINして取得される。一覧・検索の両系統で共通のレスポンス形。
type PostingWithOwner struct {
	Posting
	Email string
}

// SortKey は出品一覧のソート種別を表す。
type SortKey string

const (
	// SortNewest はtimestamp降順（デフォルト）。
	SortNewest SortKey = "newest"
	// SortOldest はtimestamp昇順。
	SortOldest SortKey = "oldest"
	// SortHighestCost はcost降順。
	SortHighestCost SortKey = "highest_cost"
	// SortLowestCost はcost昇順。
	SortLowestCost SortKey = "lowest_cost"
)

// ParseSortKey はクエリパラメータのsort値をSortKeyに変換する。
// 空文字列はnewest、未知の値はoldestにフォールバックする。
func ParseSortKey(s string) SortKey {
	switch s {
	case "":
		return SortNewest
	case string(SortNewest), string(SortOldest), string(SortHighestCost), string(SortLowestCost):
		return SortKey(s)
	default:
		return SortOldest
	}
}
