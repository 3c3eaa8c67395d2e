// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/labtrack/internal/model"
)

var (
	// ErrDuplicateEmail は同じメールアドレス（大文字小文字を区別しない）のユーザーが既に存在することを表す。
	ErrDuplicateEmail = errors.New("repository: duplicate email")
	// ErrLaboratoryNotFound は対象の研究室が存在しないことを表す。
	ErrLaboratoryNotFound = errors.New("repository: laboratory not found")
	// ErrLaboratoryFull は研究室が定員に達していることを表す。
	ErrLaboratoryFull = errors.New("repository: laboratory is full")
	// ErrAlreadyMember は既に参加済みであることを表す。
	ErrAlreadyMember = errors.New("repository: already a member")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。大文字小文字は区別しない。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、membershipsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除し、削除件数を返す。
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// LaboratoryRepository は研究室データの取得インターフェース。
type LaboratoryRepository interface {
	// ListWithMembership は研究室一覧を指定ユーザーの参加状態付きで返す。
	// queryが空でなければ名前・説明・場所の部分一致（大文字小文字を区別しない）で絞り込む。
	ListWithMembership(ctx context.Context, userID, query string) ([]model.LaboratoryWithMembership, error)

	// FindByID は指定IDの研究室を参加者数付きで取得する。見つからない場合はnilを返す。
	// idはUUID形式であること。形式の検証は呼び出し側で行う。
	FindByID(ctx context.Context, id string) (*model.Laboratory, error)
}

// MembershipRepository は研究室参加情報の永続化インターフェース。
// ユーザーIDと研究室IDはUUID形式であること。
type MembershipRepository interface {
	// CreateWithinCapacity は定員を確認した上で参加情報を作成する。
	// 研究室行をロックしてから参加者数を数えるため、同時参加でも定員を超えない。
	// 研究室が存在しない場合はErrLaboratoryNotFound、定員に達している場合はErrLaboratoryFull、
	// 参加済みの場合はErrAlreadyMemberを返す。
	CreateWithinCapacity(ctx context.Context, membership *model.Membership) error

	// Delete はユーザーの研究室参加を削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, userID, laboratoryID string) (bool, error)
}
