// Package user はユーザー検索のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/shoichi/unimart/internal/model"
	"github.com/shoichi/unimart/internal/repository"
)

// Service はユーザーディレクトリのサービス層。
// 認証済みユーザーが他の参加者を照会するための検索機能を提供する。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// Lookup はid・email・nameの条件でユーザーを検索する。
// 空文字列の条件は無視される。条件がすべて空の場合は全ユーザーを返す。
func (s *Service) Lookup(ctx context.Context, id, email, name string) ([]model.User, error) {
	id = strings.TrimSpace(id)
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	users, err := s.userRepo.Search(ctx, id, email, name)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}
