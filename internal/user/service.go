// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/labtrack/internal/model"
	"github.com/hitoshi/labtrack/internal/repository"
)

// MembershipDeleter は研究室参加の一括削除インターフェース。
type MembershipDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	memberships MembershipDeleter
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	memberships MembershipDeleter,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		memberships: memberships,
		logger:      logger,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: memberships → sessions → user
// 研究室自体は他のユーザーと共有するため残す。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	s.logger.Info("withdrawing user", slog.String("user_id", userID))

	// 1. 研究室参加を削除（参加者数から外れる）
	left, err := s.memberships.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete memberships: %w", err)
	}

	// 2. 全セッションを削除
	signedOut, err := s.sessionRepo.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}

	// 3. ユーザーを削除
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.logger.Info("user withdrew",
		slog.String("user_id", userID),
		slog.Int64("memberships_removed", left),
		slog.Int64("sessions_removed", signedOut),
	)
	return nil
}
