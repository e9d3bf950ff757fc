// Package auth はGoogle IDトークンの検証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/shoichi/unimart/internal/model"
	"github.com/shoichi/unimart/internal/repository"
)

// TokenVerifier はIDトークン検証のインターフェース。
// GoogleVerifierの抽象化。テストではモックに差し替える。
type TokenVerifier interface {
	// Verify はIDトークンを検証し、認証済みIdentityを返す。
	// 検証失敗時はErrTokenRejectedを返す。
	Verify(ctx context.Context, rawToken string) (*model.Identity, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	verifier    TokenVerifier
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	verifier TokenVerifier,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		verifier:    verifier,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// Login はIDトークンを検証し、セッションを発行する。
// ユーザーレコードが存在しない場合は作成する（初回認証時の遅延作成）。
// 同一subject idの同時作成はリポジトリ側のON CONFLICT DO NOTHINGで吸収される。
func (s *Service) Login(ctx context.Context, rawToken string) (*model.Session, error) {
	identity, err := s.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	if err := s.ensureUser(ctx, identity); err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}

	session, err := s.createSession(ctx, identity.SubjectID, rawToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", identity.SubjectID),
		slog.String("hosted_domain", identity.HostedDomain),
	)

	return session, nil
}

// Authorize はセッションIDから認証済みIdentityを取得する。
// セッションに保持されたIDトークンを毎回再検証するため、
// 失効したトークンは1リクエスト以内に認可から外れる。
func (s *Service) Authorize(ctx context.Context, sessionID string) (*model.Identity, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: missing session", ErrTokenRejected)
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session not found or expired", ErrTokenRejected)
	}

	identity, err := s.verifier.Verify(ctx, session.IDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to re-verify id token: %w", err)
	}

	return identity, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// ensureUser はIdentityに対応するユーザーレコードを冪等に作成する。
// 既存レコードがある場合は作成も更新もしない。
func (s *Service) ensureUser(ctx context.Context, identity *model.Identity) error {
	existing, err := s.userRepo.FindByID(ctx, identity.SubjectID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	newUser := &model.User{
		ID:        identity.SubjectID,
		Email:     identity.Email,
		Name:      identity.Name,
		CreatedAt: time.Now(),
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return err
	}

	slog.Info("new user created",
		slog.String("user_id", identity.SubjectID),
		slog.String("email", identity.Email),
	)
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID, rawToken string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		IDToken:   rawToken,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
