// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/shoichi/unimart/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はユーザーを作成する。同一IDの行が既に存在する場合は何もしない（冪等）。
	// 同時リクエストによる重複作成の競合はON CONFLICT DO NOTHINGで吸収する。
	Create(ctx context.Context, user *model.User) error

	// Search はid・email・nameの条件でユーザーを検索する。空文字列の条件は無視される。
	Search(ctx context.Context, id, email, name string) ([]model.User, error)
}

// CategoryRepository はカテゴリ参照データのインターフェース。
type CategoryRepository interface {
	// Exists は指定IDのカテゴリが存在するかを返す。
	Exists(ctx context.Context, id int) (bool, error)

	// List は全カテゴリをID昇順で返す。
	List(ctx context.Context) ([]model.Category, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// PostingFilter は出品一覧の絞り込み条件を表す。
// nilのフィールドは条件として適用されない（ゼロ件マッチにはならない）。
type PostingFilter struct {
	ID       *int64
	Owner    *string
	Category *int
	Cost     *float64 // 完全一致
	MaxCost  *float64 // 上限
}

// PostingPatch は出品の部分更新を表す。nilのフィールドは変更されない。
// 検証（カテゴリ実在・cost有限性）は呼び出し側の責務。
type PostingPatch struct {
	Title       *string
	Description *string
	Cost        *float64
	Category    *int
}

// PostingRepository は出品データの永続化インターフェース。
type PostingRepository interface {
	// List は条件に合致する出品を所有者のメールアドレス付きで取得する。
	// ページは1始まり。1未満のページは1に丸められる。
	// 総ページ数はceil(総件数/perPage)を返す（0件なら0）。
	List(ctx context.Context, filter PostingFilter, sort model.SortKey, page, perPage int) ([]model.PostingWithOwner, int, error)

	// FindByID は指定IDの出品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Posting, error)

	// FindByIDs は指定ID群の出品を所有者メールアドレス付きで取得する。
	// 返却順は保証しない。検索インデックスのランキング順への並べ替えは呼び出し側が行う。
	FindByIDs(ctx context.Context, ids []int64) ([]model.PostingWithOwner, error)

	// FindDuplicate は(owner, title, description, category)が完全一致する既存行を検索する。
	// 二重送信ガードに使用する。見つからない場合はnilを返す。
	FindDuplicate(ctx context.Context, owner, title, description string, category int) (*model.Posting, error)

	// Insert は新規出品を作成し、採番されたIDを設定して返す。
	Insert(ctx context.Context, posting *model.Posting) error

	// Update は(id, owner)に一致する行をトランザクション内で読み取り・マージ・永続化する。
	// 一致する行がない場合はnilを返す（非所有者と存在しないIDは区別されない）。
	// timestampは他のフィールドに変更がなくても必ずnowに更新される。
	Update(ctx context.Context, id int64, owner string, patch PostingPatch, now time.Time) (*model.Posting, error)

	// UpdateImages は出品の画像ファイル名リストを置き換える。
	UpdateImages(ctx context.Context, id int64, images []string) error

	// Delete は指定IDの出品を削除する。所有者チェックは呼び出し側の責務。
	Delete(ctx context.Context, id int64) error
}
