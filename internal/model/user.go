// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// IDはGoogle IDトークンのsubjectクレーム（数値文字列）をそのまま主キーとする。
// 初回認証成功時に遅延作成され、以降更新も削除もされない。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Identity はIDトークン検証済みの認証情報を表す。
// 検証に成功した場合のみ生成される。部分的なIdentityは存在しない。
type Identity struct {
	SubjectID    string
	Email        string
	Name         string
	HostedDomain string
}

// Session はユーザーのログインセッションを表す。
// IDTokenには認証時のGoogle IDトークンをそのまま保持し、
// 認可のたびに再検証する（トークン失効は1リクエスト以内に反映される）。
type Session struct {
	ID        string
	UserID    string
	IDToken   string
	ExpiresAt time.Time
	CreatedAt time.Time
}
