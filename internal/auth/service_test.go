package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/labtrack/internal/model"
	"github.com/hitoshi/labtrack/internal/repository"
	"github.com/hitoshi/labtrack/internal/security"
	"golang.org/x/crypto/bcrypt"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	createFn      func(ctx context.Context, user *model.User) error
	deleteByIDFn  func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (m *mockSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

type mockRecorder struct {
	attempts []string
}

func (m *mockRecorder) RecordAuthAttempt(action, result string) {
	m.attempts = append(m.attempts, action+":"+result)
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)

var testConfig = ServiceConfig{
	SessionMaxAge:         86400,
	SessionRememberMaxAge: 2592000,
	BcryptCost:            bcrypt.MinCost,
}

func newTestService(userRepo *mockUserRepo, sessionRepo *mockSessionRepo, recorder AttemptRecorder) *Service {
	return NewService(userRepo, sessionRepo, security.NewTextSanitizer(0), recorder, testConfig)
}

func hashPassword(t *testing.T, password string) []byte {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("ハッシュ生成に失敗: %v", err)
	}
	return hash
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *model.APIError", err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}

// --- Login ---

func TestLogin_Success_CreatesSession(t *testing.T) {
	user := &model.User{ID: "user-1", Email: "a@b.com", PasswordHash: hashPassword(t, "password1")}
	var created *model.Session
	recorder := &mockRecorder{}

	svc := newTestService(&mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			if email != "a@b.com" {
				t.Errorf("email = %q, want trimmed a@b.com", email)
			}
			return user, nil
		},
	}, &mockSessionRepo{
		createFn: func(ctx context.Context, s *model.Session) error {
			created = s
			return nil
		},
	}, recorder)

	session, got, err := svc.Login(context.Background(), " a@b.com ", "password1", false)
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
	if got.ID != "user-1" {
		t.Errorf("user.ID = %q, want user-1", got.ID)
	}
	if created == nil || created.ID != session.ID || len(session.ID) != 64 {
		t.Fatalf("セッションが保存されていない、またはIDが不正: %+v", session)
	}
	if session.Remember {
		t.Error("remember=false のセッションは Remember=false であるべき")
	}
	lifetime := time.Until(session.ExpiresAt)
	if lifetime < 23*time.Hour || lifetime > 25*time.Hour {
		t.Errorf("有効期限までの時間 = %v, want about 24h", lifetime)
	}
	if len(recorder.attempts) != 1 || recorder.attempts[0] != "login:success" {
		t.Errorf("attempts = %v, want [login:success]", recorder.attempts)
	}
}

func TestLogin_Remember_UsesLongerMaxAge(t *testing.T) {
	user := &model.User{ID: "user-1", Email: "a@b.com", PasswordHash: hashPassword(t, "password1")}
	svc := newTestService(&mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) { return user, nil },
	}, &mockSessionRepo{}, nil)

	session, _, err := svc.Login(context.Background(), "a@b.com", "password1", true)
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
	if !session.Remember {
		t.Error("Remember should be true")
	}
	if time.Until(session.ExpiresAt) < 29*24*time.Hour {
		t.Errorf("remember セッションの有効期限が短すぎる: %v", session.ExpiresAt)
	}
	if svc.SessionMaxAge(true) != 2592000 || svc.SessionMaxAge(false) != 86400 {
		t.Errorf("SessionMaxAge = (%d, %d)", svc.SessionMaxAge(true), svc.SessionMaxAge(false))
	}
}

func TestLogin_WrongPassword_ReturnsInvalidCredentials(t *testing.T) {
	user := &model.User{ID: "user-1", Email: "a@b.com", PasswordHash: hashPassword(t, "password1")}
	recorder := &mockRecorder{}
	svc := newTestService(&mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) { return user, nil },
	}, &mockSessionRepo{
		createFn: func(ctx context.Context, s *model.Session) error {
			t.Fatal("認証失敗時にセッションを作成してはならない")
			return nil
		},
	}, recorder)

	_, _, err := svc.Login(context.Background(), "a@b.com", "wrong-password", false)
	assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)
	if len(recorder.attempts) != 1 || recorder.attempts[0] != "login:failure" {
		t.Errorf("attempts = %v, want [login:failure]", recorder.attempts)
	}
}

func TestLogin_UnknownEmail_ReturnsSameError(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, nil)

	_, _, err := svc.Login(context.Background(), "nobody@b.com", "password1", false)
	assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)
}

func TestLogin_EmptyFields(t *testing.T) {
	svc := newTestService(&mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			t.Fatal("空の入力でリポジトリを呼び出してはならない")
			return nil, nil
		},
	}, &mockSessionRepo{}, nil)

	_, _, err := svc.Login(context.Background(), "  ", "", false)
	assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)
}

func TestLogin_RepositoryError_IsWrapped(t *testing.T) {
	dbErr := errors.New("db down")
	svc := newTestService(&mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) { return nil, dbErr },
	}, &mockSessionRepo{}, nil)

	_, _, err := svc.Login(context.Background(), "a@b.com", "password1", false)
	if !errors.Is(err, dbErr) {
		t.Errorf("error = %v, want wrapped %v", err, dbErr)
	}
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	var createdUser *model.User
	var createdSession *model.Session
	svc := newTestService(&mockUserRepo{
		createFn: func(ctx context.Context, u *model.User) error {
			createdUser = u
			return nil
		},
	}, &mockSessionRepo{
		createFn: func(ctx context.Context, s *model.Session) error {
			createdSession = s
			return nil
		},
	}, nil)

	session, user, err := svc.Register(context.Background(), RegisterInput{
		Email:         "new.user@example.com",
		Password:      "password1",
		AgreedToTerms: true,
	})
	if err != nil {
		t.Fatalf("Register がエラーを返した: %v", err)
	}

	if createdUser == nil || createdUser.ID != user.ID {
		t.Fatal("ユーザーが保存されていない")
	}
	if user.DisplayName != "new.user" {
		t.Errorf("DisplayName = %q, want %q", user.DisplayName, "new.user")
	}
	if !user.AgreedToTOS {
		t.Error("AgreedToTOS should be true")
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte("password1")); err != nil {
		t.Errorf("保存されたハッシュがパスワードと一致しない: %v", err)
	}
	if createdSession == nil || createdSession.UserID != user.ID || session.ID != createdSession.ID {
		t.Errorf("登録後のセッションが不正: %+v", createdSession)
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name        string
		input       RegisterInput
		wantCode    string
		wantMessage string
	}{
		{name: "メールアドレス形式不正", input: RegisterInput{Email: "not-an-email", Password: "password1", AgreedToTerms: true}, wantCode: model.ErrCodeInvalidEmail},
		{name: "メールアドレス空", input: RegisterInput{Email: "", Password: "password1", AgreedToTerms: true}, wantCode: model.ErrCodeInvalidEmail},
		{name: "パスワードが短い", input: RegisterInput{Email: "a@b.com", Password: "short", AgreedToTerms: true}, wantCode: model.ErrCodeWeakPassword, wantMessage: "Password must be at least 8 characters"},
		{name: "パスワードが長すぎる", input: RegisterInput{Email: "a@b.com", Password: strings.Repeat("a", 73), AgreedToTerms: true}, wantCode: model.ErrCodeWeakPassword, wantMessage: "Password must be at most 72 bytes"},
		{name: "利用規約未同意", input: RegisterInput{Email: "a@b.com", Password: "password1", AgreedToTerms: false}, wantCode: model.ErrCodeTermsNotAgreed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &mockRecorder{}
			svc := newTestService(&mockUserRepo{
				createFn: func(ctx context.Context, u *model.User) error {
					t.Fatal("検証エラー時にユーザーを作成してはならない")
					return nil
				},
			}, &mockSessionRepo{}, recorder)

			_, _, err := svc.Register(context.Background(), tt.input)
			assertAPIErrorCode(t, err, tt.wantCode)
			if tt.wantMessage != "" && err.Error() != "["+tt.wantCode+"] "+tt.wantMessage {
				t.Errorf("error = %q, want message %q", err.Error(), tt.wantMessage)
			}
			if len(recorder.attempts) != 1 || recorder.attempts[0] != "register:failure" {
				t.Errorf("attempts = %v, want [register:failure]", recorder.attempts)
			}
		})
	}
}

func TestNewService_OutOfRangeBcryptCostFallsBackToDefault(t *testing.T) {
	for _, cost := range []int{-1, bcrypt.MaxCost + 1} {
		svc := NewService(&mockUserRepo{}, &mockSessionRepo{}, security.NewTextSanitizer(0), nil, ServiceConfig{
			SessionMaxAge: 3600,
			BcryptCost:    cost,
		})
		if svc.config.BcryptCost != bcrypt.DefaultCost {
			t.Errorf("cost %d: BcryptCost = %d, want %d", cost, svc.config.BcryptCost, bcrypt.DefaultCost)
		}
		got, err := bcrypt.Cost(svc.dummyHash)
		if err != nil || got != bcrypt.DefaultCost {
			t.Errorf("cost %d: dummy hash cost = (%d, %v), want %d", cost, got, err, bcrypt.DefaultCost)
		}
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc := newTestService(&mockUserRepo{
		createFn: func(ctx context.Context, u *model.User) error { return repository.ErrDuplicateEmail },
	}, &mockSessionRepo{}, nil)

	_, _, err := svc.Register(context.Background(), RegisterInput{Email: "a@b.com", Password: "password1", AgreedToTerms: true})
	assertAPIErrorCode(t, err, model.ErrCodeDuplicateAccount)
}

// --- Logout ---

func TestLogout_DeletesSession(t *testing.T) {
	var deleted string
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}, nil)

	if err := svc.Logout(context.Background(), "session-1"); err != nil {
		t.Fatalf("Logout がエラーを返した: %v", err)
	}
	if deleted != "session-1" {
		t.Errorf("deleted = %q, want session-1", deleted)
	}
}

func TestLogout_EmptySession_IsNoop(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			t.Fatal("セッションIDが空の場合は削除しない")
			return nil
		},
	}, nil)

	if err := svc.Logout(context.Background(), ""); err != nil {
		t.Errorf("Logout がエラーを返した: %v", err)
	}
}

// --- GetCurrentUser ---

func TestGetCurrentUser(t *testing.T) {
	user := &model.User{ID: "user-1", Email: "a@b.com"}

	tests := []struct {
		name      string
		sessionID string
		session   *model.Session
		user      *model.User
		wantUser  bool
	}{
		{name: "有効なセッション", sessionID: "s1", session: &model.Session{ID: "s1", UserID: "user-1"}, user: user, wantUser: true},
		{name: "セッションIDなし", sessionID: ""},
		{name: "期限切れまたは不明なセッション", sessionID: "s2"},
		{name: "ユーザー削除済み", sessionID: "s3", session: &model.Session{ID: "s3", UserID: "gone"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockUserRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.User, error) { return tt.user, nil },
			}, &mockSessionRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Session, error) { return tt.session, nil },
			}, nil)

			got, err := svc.GetCurrentUser(context.Background(), tt.sessionID)
			if tt.wantUser {
				if err != nil || got == nil || got.ID != "user-1" {
					t.Fatalf("GetCurrentUser = (%v, %v), want user-1", got, err)
				}
				return
			}
			assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)
		})
	}
}

func TestNewService_RememberNeverShorterThanSession(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockSessionRepo{}, security.NewTextSanitizer(0), nil, ServiceConfig{
		SessionMaxAge:         3600,
		SessionRememberMaxAge: 60,
		BcryptCost:            bcrypt.MinCost,
	})
	if svc.SessionMaxAge(true) != 3600 {
		t.Errorf("SessionMaxAge(true) = %d, want 3600", svc.SessionMaxAge(true))
	}
}
