// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, posting, search, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRejected     = "AUTH_REJECTED"
	ErrCodeValidation       = "VALIDATION_FAILED"
	ErrCodePostingNotFound  = "POSTING_NOT_FOUND"
	ErrCodeCategoryNotFound = "CATEGORY_NOT_FOUND"
	ErrCodeOwnership        = "NOT_OWNER"
	ErrCodeSearchFailed     = "SEARCH_FAILED"
)

// NewAuthRejectedError は認証・認可の拒否エラーを生成する。
// どの検証段階で失敗したかは漏らさない。
func NewAuthRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRejected,
		Message:  "認証に失敗しました。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再送信してください。",
	}
}

// NewPostingNotFoundError は出品が見つからない場合のエラーを生成する。
// 非所有者による更新もこのエラーに集約し、存在の有無を漏らさない。
func NewPostingNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodePostingNotFound,
		Message:  fmt.Sprintf("指定された出品が見つかりません: %d", id),
		Category: "posting",
		Action:   "出品IDを確認してください。",
	}
}

// NewCategoryNotFoundError は存在しないカテゴリが指定された場合のエラーを生成する。
func NewCategoryNotFoundError(id int) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("指定されたカテゴリが存在しません: %d", id),
		Category: "validation",
		Action:   "カテゴリ一覧から有効なカテゴリを選択してください。",
	}
}

// NewOwnershipError は他ユーザーの出品に対する削除操作のエラーを生成する。
// 行の存在を確認した後にのみ返される。
func NewOwnershipError() *APIError {
	return &APIError{
		Code:     ErrCodeOwnership,
		Message:  "この出品を操作する権限がありません。",
		Category: "auth",
		Action:   "自分の出品のみ編集・削除できます。",
	}
}

// NewSearchFailedError は検索インデックスへの問い合わせ自体が失敗した場合のエラーを生成する。
// ヒット0件はエラーではなく空の結果として扱う。
func NewSearchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSearchFailed,
		Message:  fmt.Sprintf("検索クエリの実行に失敗しました: %s", reason),
		Category: "search",
		Action:   "検索キーワードを変更して再度お試しください。",
	}
}
