package laboratory

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/labtrack/internal/model"
	"github.com/hitoshi/labtrack/internal/repository"
)

// --- モック ---

type mockLabRepo struct {
	listFn     func(ctx context.Context, userID, query string) ([]model.LaboratoryWithMembership, error)
	findByIDFn func(ctx context.Context, id string) (*model.Laboratory, error)
}

func (m *mockLabRepo) ListWithMembership(ctx context.Context, userID, query string) ([]model.LaboratoryWithMembership, error) {
	return m.listFn(ctx, userID, query)
}
func (m *mockLabRepo) FindByID(ctx context.Context, id string) (*model.Laboratory, error) {
	return m.findByIDFn(ctx, id)
}

type mockMembershipRepo struct {
	createFn func(ctx context.Context, membership *model.Membership) error
	deleteFn func(ctx context.Context, userID, labID string) (bool, error)
}

func (m *mockMembershipRepo) CreateWithinCapacity(ctx context.Context, membership *model.Membership) error {
	return m.createFn(ctx, membership)
}
func (m *mockMembershipRepo) Delete(ctx context.Context, userID, labID string) (bool, error) {
	return m.deleteFn(ctx, userID, labID)
}

type mockRecorder struct {
	actions []string
}

func (m *mockRecorder) RecordMembershipChange(action string) {
	m.actions = append(m.actions, action)
}

const (
	testLabID  = "6f1c2a8e-1d4b-4c6e-9a51-0b7d3e2f4a02"
	testUserID = "0d9b6f5e-0000-4000-8000-000000000001"
)

func testLab() *model.Laboratory {
	return &model.Laboratory{ID: testLabID, Name: "Green Chemistry Lab", Capacity: 15, CurrentMembers: 8}
}

func newTestService(labRepo *mockLabRepo, memberRepo *mockMembershipRepo, recorder MembershipRecorder) *Service {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewService(labRepo, memberRepo, NewCalculator(0.233), recorder, logger)
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

// --- List ---

func TestService_List_PassesTrimmedQuery(t *testing.T) {
	var gotQuery string
	svc := newTestService(&mockLabRepo{
		listFn: func(ctx context.Context, userID, query string) ([]model.LaboratoryWithMembership, error) {
			gotQuery = query
			return nil, nil
		},
	}, &mockMembershipRepo{}, nil)

	labs, err := svc.List(context.Background(), testUserID, "  energy ")
	if err != nil {
		t.Fatalf("List がエラーを返した: %v", err)
	}
	if gotQuery != "energy" {
		t.Errorf("query = %q, want %q", gotQuery, "energy")
	}
	if labs == nil {
		t.Error("結果が0件でも空スライスを返すべき")
	}
}

func TestService_List_RejectsLongQuery(t *testing.T) {
	svc := newTestService(&mockLabRepo{}, &mockMembershipRepo{}, nil)
	long := make([]byte, maxQueryLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := svc.List(context.Background(), testUserID, string(long))
	assertAPIErrorCode(t, err, model.ErrCodeInvalidRequest)
}

// --- Join ---

func TestService_Join_Success(t *testing.T) {
	var created *model.Membership
	recorder := &mockRecorder{}
	svc := newTestService(&mockLabRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Laboratory, error) { return testLab(), nil },
	}, &mockMembershipRepo{
		createFn: func(ctx context.Context, m *model.Membership) error {
			created = m
			return nil
		},
	}, recorder)

	result, err := svc.Join(context.Background(), testUserID, testLabID, model.ChecklistAnswers{
		MultipleMonitors: true, MaxMonitors: 2, ULTFreezers: 1,
	})
	if err != nil {
		t.Fatalf("Join がエラーを返した: %v", err)
	}

	if created == nil || created.UserID != testUserID || created.LaboratoryID != testLabID || created.ID == "" {
		t.Fatalf("作成された参加情報が不正: %+v", created)
	}
	if created.Answers.FreezerTemperature != model.DefaultFreezerTemperature {
		t.Errorf("保存された温度 = %d, want %d", created.Answers.FreezerTemperature, model.DefaultFreezerTemperature)
	}
	if !result.Laboratory.IsJoined || result.Laboratory.CurrentMembers != 9 {
		t.Errorf("Laboratory = %+v, want joined with 9 members", result.Laboratory)
	}
	if result.Recommendations.MonitorAdvice == "" {
		t.Error("複数モニター利用時はMonitorAdviceを返すべき")
	}
	if len(recorder.actions) != 1 || recorder.actions[0] != "join" {
		t.Errorf("recorded actions = %v, want [join]", recorder.actions)
	}
}

func TestService_Join_InvalidChecklist_DoesNotTouchRepository(t *testing.T) {
	svc := newTestService(&mockLabRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Laboratory, error) {
			t.Fatal("回答が不正な場合は研究室を検索しないべき")
			return nil, nil
		},
	}, &mockMembershipRepo{}, nil)

	_, err := svc.Join(context.Background(), testUserID, testLabID, model.ChecklistAnswers{MultipleMonitors: true, MaxMonitors: 20})
	assertAPIErrorCode(t, err, model.ErrCodeInvalidChecklist)
}

func TestService_Join_LabNotFound(t *testing.T) {
	svc := newTestService(&mockLabRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Laboratory, error) { return nil, nil },
	}, &mockMembershipRepo{}, nil)

	_, err := svc.Join(context.Background(), testUserID, "6f1c2a8e-1d4b-4c6e-9a51-0b7d3e2f4aff", model.ChecklistAnswers{})
	assertAPIErrorCode(t, err, model.ErrCodeLabNotFound)
}

func TestService_MalformedLabID_IsNotFound(t *testing.T) {
	labRepo := &mockLabRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Laboratory, error) {
			t.Fatalf("不正なIDで研究室を検索した: %q", id)
			return nil, nil
		},
	}
	memberRepo := &mockMembershipRepo{
		createFn: func(ctx context.Context, m *model.Membership) error {
			t.Fatal("不正なIDで参加処理を呼び出した")
			return nil
		},
		deleteFn: func(ctx context.Context, userID, labID string) (bool, error) {
			t.Fatal("不正なIDで退出処理を呼び出した")
			return false, nil
		},
	}
	svc := newTestService(labRepo, memberRepo, nil)

	for _, id := range []string{"lab-1", "", "6f1c2a8e-1d4b-4c6e-9a51", "'; DROP TABLE laboratories; --"} {
		_, err := svc.Join(context.Background(), testUserID, id, model.ChecklistAnswers{})
		assertAPIErrorCode(t, err, model.ErrCodeLabNotFound)

		err = svc.Leave(context.Background(), testUserID, id)
		assertAPIErrorCode(t, err, model.ErrCodeLabNotFound)
	}
}

func TestService_Join_NormalizesLabIDCase(t *testing.T) {
	var gotID string
	svc := newTestService(&mockLabRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Laboratory, error) {
			gotID = id
			return testLab(), nil
		},
	}, &mockMembershipRepo{
		createFn: func(ctx context.Context, m *model.Membership) error { return nil },
	}, nil)

	if _, err := svc.Join(context.Background(), testUserID, strings.ToUpper(testLabID), model.ChecklistAnswers{}); err != nil {
		t.Fatalf("Join がエラーを返した: %v", err)
	}
	if gotID != testLabID {
		t.Errorf("FindByID id = %q, want %q", gotID, testLabID)
	}
}

func TestService_Join_MapsRepositoryErrors(t *testing.T) {
	tests := []struct {
		name     string
		repoErr  error
		wantCode string
	}{
		{name: "定員超過", repoErr: repository.ErrLaboratoryFull, wantCode: model.ErrCodeLabFull},
		{name: "参加済み", repoErr: repository.ErrAlreadyMember, wantCode: model.ErrCodeAlreadyJoined},
		{name: "削除済み研究室", repoErr: repository.ErrLaboratoryNotFound, wantCode: model.ErrCodeLabNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &mockRecorder{}
			svc := newTestService(&mockLabRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Laboratory, error) { return testLab(), nil },
			}, &mockMembershipRepo{
				createFn: func(ctx context.Context, m *model.Membership) error { return tt.repoErr },
			}, recorder)

			_, err := svc.Join(context.Background(), testUserID, testLabID, model.ChecklistAnswers{})
			assertAPIErrorCode(t, err, tt.wantCode)
			if len(recorder.actions) != 0 {
				t.Errorf("失敗時は記録しないべき: %v", recorder.actions)
			}
		})
	}
}

func TestService_Join_UnexpectedRepositoryError_IsWrapped(t *testing.T) {
	dbErr := errors.New("connection reset")
	svc := newTestService(&mockLabRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Laboratory, error) { return testLab(), nil },
	}, &mockMembershipRepo{
		createFn: func(ctx context.Context, m *model.Membership) error { return dbErr },
	}, nil)

	_, err := svc.Join(context.Background(), testUserID, testLabID, model.ChecklistAnswers{})
	if !errors.Is(err, dbErr) {
		t.Errorf("error = %v, want wrapped %v", err, dbErr)
	}
}

// --- Leave ---

func TestService_Leave(t *testing.T) {
	tests := []struct {
		name     string
		lab      *model.Laboratory
		deleted  bool
		wantCode string
	}{
		{name: "退出成功", lab: testLab(), deleted: true},
		{name: "未参加", lab: testLab(), deleted: false, wantCode: model.ErrCodeNotAMember},
		{name: "研究室なし", lab: nil, wantCode: model.ErrCodeLabNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &mockRecorder{}
			svc := newTestService(&mockLabRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Laboratory, error) { return tt.lab, nil },
			}, &mockMembershipRepo{
				deleteFn: func(ctx context.Context, userID, labID string) (bool, error) { return tt.deleted, nil },
			}, recorder)

			err := svc.Leave(context.Background(), testUserID, testLabID)
			if tt.wantCode != "" {
				assertAPIErrorCode(t, err, tt.wantCode)
				return
			}
			if err != nil {
				t.Fatalf("Leave がエラーを返した: %v", err)
			}
			if len(recorder.actions) != 1 || recorder.actions[0] != "leave" {
				t.Errorf("recorded actions = %v, want [leave]", recorder.actions)
			}
		})
	}
}
