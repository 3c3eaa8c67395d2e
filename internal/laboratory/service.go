// Package laboratory は研究室の一覧・参加・退出のドメインロジックを提供する。
package laboratory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/labtrack/internal/model"
	"github.com/hitoshi/labtrack/internal/repository"
)

// maxQueryLength は検索語の最大長。
const maxQueryLength = 100

// MembershipRecorder は参加・退出の発生を記録する。
type MembershipRecorder interface {
	RecordMembershipChange(action string)
}

// JoinResult は研究室参加の結果。
type JoinResult struct {
	Laboratory      model.LaboratoryWithMembership
	Recommendations model.LabRecommendations
}

// Service は研究室管理のサービス層。
type Service struct {
	labRepo        repository.LaboratoryRepository
	membershipRepo repository.MembershipRepository
	calculator     *Calculator
	recorder       MembershipRecorder
	logger         *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewService(
	labRepo repository.LaboratoryRepository,
	membershipRepo repository.MembershipRepository,
	calculator *Calculator,
	recorder MembershipRecorder,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		labRepo:        labRepo,
		membershipRepo: membershipRepo,
		calculator:     calculator,
		recorder:       recorder,
		logger:         logger,
	}
}

// List は研究室一覧をユーザーの参加状態付きで返す。
func (s *Service) List(ctx context.Context, userID, query string) ([]model.LaboratoryWithMembership, error) {
	query = strings.TrimSpace(query)
	if len(query) > maxQueryLength {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("query must be at most %d characters", maxQueryLength))
	}

	labs, err := s.labRepo.ListWithMembership(ctx, userID, query)
	if err != nil {
		return nil, fmt.Errorf("研究室一覧の取得に失敗しました: %w", err)
	}
	if labs == nil {
		labs = []model.LaboratoryWithMembership{}
	}
	return labs, nil
}

// Join はアンケート回答を検証し、推奨事項を算出して研究室に参加する。
func (s *Service) Join(ctx context.Context, userID, labID string, answers model.ChecklistAnswers) (*JoinResult, error) {
	labID, err := parseLabID(labID)
	if err != nil {
		return nil, err
	}
	normalized, err := NormalizeAnswers(answers)
	if err != nil {
		return nil, err
	}

	lab, err := s.labRepo.FindByID(ctx, labID)
	if err != nil {
		return nil, fmt.Errorf("研究室の取得に失敗しました: %w", err)
	}
	if lab == nil {
		return nil, model.NewLabNotFoundError(labID)
	}

	recs := s.calculator.Recommend(normalized)
	membership := &model.Membership{
		ID:              uuid.New().String(),
		UserID:          userID,
		LaboratoryID:    lab.ID,
		Answers:         normalized,
		Recommendations: recs,
		JoinedAt:        time.Now(),
	}

	if err := s.membershipRepo.CreateWithinCapacity(ctx, membership); err != nil {
		switch {
		case errors.Is(err, repository.ErrLaboratoryNotFound):
			return nil, model.NewLabNotFoundError(labID)
		case errors.Is(err, repository.ErrLaboratoryFull):
			return nil, model.NewLabFullError()
		case errors.Is(err, repository.ErrAlreadyMember):
			return nil, model.NewAlreadyJoinedError()
		default:
			return nil, fmt.Errorf("研究室への参加に失敗しました: %w", err)
		}
	}

	s.record("join")
	s.logger.Info("laboratory joined",
		slog.String("user_id", userID),
		slog.String("laboratory_id", lab.ID),
		slog.Float64("yearly_energy_kwh", recs.YearlyEnergyUsage),
	)

	lab.CurrentMembers++
	return &JoinResult{
		Laboratory:      model.LaboratoryWithMembership{Laboratory: *lab, IsJoined: true},
		Recommendations: recs,
	}, nil
}

// Leave は研究室から退出する。
func (s *Service) Leave(ctx context.Context, userID, labID string) error {
	labID, err := parseLabID(labID)
	if err != nil {
		return err
	}
	lab, err := s.labRepo.FindByID(ctx, labID)
	if err != nil {
		return fmt.Errorf("研究室の取得に失敗しました: %w", err)
	}
	if lab == nil {
		return model.NewLabNotFoundError(labID)
	}

	deleted, err := s.membershipRepo.Delete(ctx, userID, lab.ID)
	if err != nil {
		return fmt.Errorf("研究室からの退出に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewNotAMemberError()
	}

	s.record("leave")
	s.logger.Info("laboratory left",
		slog.String("user_id", userID),
		slog.String("laboratory_id", lab.ID),
	)
	return nil
}

// parseLabID はUUID形式でない研究室IDを存在しない研究室として扱う。
func parseLabID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", model.NewLabNotFoundError(id)
	}
	return u.String(), nil
}

func (s *Service) record(action string) {
	if s.recorder != nil {
		s.recorder.RecordMembershipChange(action)
	}
}
