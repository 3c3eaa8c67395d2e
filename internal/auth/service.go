// Package auth はメールアドレスとパスワードによる認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hitoshi/labtrack/internal/model"
	"github.com/hitoshi/labtrack/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultMinPasswordLength はパスワードの最小文字数。
	DefaultMinPasswordLength = 8
	// maxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
	maxPasswordBytes = 72
)

// 認証結果のラベル（メトリクス用）。
const (
	ActionLogin    = "login"
	ActionRegister = "register"
	ResultSuccess  = "success"
	ResultFailure  = "failure"
)

// AttemptRecorder は認証の試行結果を記録する。
type AttemptRecorder interface {
	RecordAuthAttempt(action, result string)
}

// DisplayNameSanitizer はメールアドレスから安全な表示名を作る。
type DisplayNameSanitizer interface {
	DisplayNameFromEmail(email string) string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge         int // セッション有効期間（秒）
	SessionRememberMaxAge int // ログイン状態を保持する場合の有効期間（秒）
	MinPasswordLength     int
	BcryptCost            int // 0の場合はbcrypt.DefaultCost
}

// RegisterInput はアカウント登録の入力値。
type RegisterInput struct {
	Email         string
	Password      string
	AgreedToTerms bool
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	sanitizer   DisplayNameSanitizer
	recorder    AttemptRecorder
	validate    *validator.Validate
	config      ServiceConfig
	dummyHash   []byte
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	sanitizer DisplayNameSanitizer,
	recorder AttemptRecorder,
	config ServiceConfig,
) *Service {
	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = DefaultMinPasswordLength
	}
	if config.BcryptCost < bcrypt.MinCost || config.BcryptCost > bcrypt.MaxCost {
		if config.BcryptCost != 0 {
			slog.Warn("bcrypt cost out of range, using default",
				slog.Int("cost", config.BcryptCost),
				slog.Int("default", bcrypt.DefaultCost),
			)
		}
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.SessionRememberMaxAge < config.SessionMaxAge {
		config.SessionRememberMaxAge = config.SessionMaxAge
	}

	// 存在しないメールアドレスでも照合時間をそろえるためのハッシュ
	dummy, err := bcrypt.GenerateFromPassword([]byte("labtrack-dummy-password"), config.BcryptCost)
	if err != nil {
		slog.Error("failed to generate dummy password hash", slog.String("error", err.Error()))
	}

	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		sanitizer:   sanitizer,
		recorder:    recorder,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		config:      config,
		dummyHash:   dummy,
	}
}

// SessionMaxAge はrememberに応じたセッション有効期間（秒）を返す。
func (s *Service) SessionMaxAge(remember bool) int {
	if remember {
		return s.config.SessionRememberMaxAge
	}
	return s.config.SessionMaxAge
}

// Login はメールアドレスとパスワードを照合し、セッションを発行する。
// メールアドレスの存在有無にかかわらず同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string, remember bool) (*model.Session, *model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		s.record(ActionLogin, ResultFailure)
		return nil, nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.record(ActionLogin, ResultFailure)
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		s.record(ActionLogin, ResultFailure)
		slog.Info("login rejected", slog.String("user_id", user.ID))
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID, remember)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.record(ActionLogin, ResultSuccess)
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.Bool("remember", remember),
	)
	return session, user, nil
}

// Register はアカウントを作成し、そのままセッションを発行する。
// 利用規約への同意はクライアント側の確認に加えてここでも検証する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Session, *model.User, error) {
	email := strings.TrimSpace(in.Email)
	if err := s.validate.Var(email, "required,email,max=255"); err != nil {
		s.record(ActionRegister, ResultFailure)
		return nil, nil, model.NewInvalidEmailError(email)
	}
	if len(in.Password) < s.config.MinPasswordLength {
		s.record(ActionRegister, ResultFailure)
		return nil, nil, model.NewWeakPasswordError(s.config.MinPasswordLength)
	}
	if len(in.Password) > maxPasswordBytes {
		s.record(ActionRegister, ResultFailure)
		return nil, nil, model.NewPasswordTooLongError(maxPasswordBytes)
	}
	if !in.AgreedToTerms {
		s.record(ActionRegister, ResultFailure)
		return nil, nil, model.NewTermsNotAgreedError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  s.sanitizer.DisplayNameFromEmail(email),
		PasswordHash: hash,
		AgreedToTOS:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.record(ActionRegister, ResultFailure)
			return nil, nil, model.NewDuplicateAccountError()
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.createSession(ctx, user.ID, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.record(ActionRegister, ResultSuccess)
	slog.Info("new user registered", slog.String("user_id", user.ID))
	return session, user, nil
}

// Logout はセッションを破棄する。セッションIDが空の場合は何もしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
// セッションがない、期限切れ、ユーザー削除済みの場合は未認証エラーを返す。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string, remember bool) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		Remember:  remember,
		ExpiresAt: now.Add(time.Duration(s.SessionMaxAge(remember)) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) record(action, result string) {
	if s.recorder != nil {
		s.recorder.RecordAuthAttempt(action, result)
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
