// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptハッシュで、APIレスポンスには含めない。
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash []byte
	AgreedToTOS  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は認証済みユーザーの最小限の情報を表す。
// クライアント側のセッション状態が保持する値であり、APIの /auth/me が返す形でもある。
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"name,omitempty"`
}

// Identity はユーザーから公開可能な識別情報を取り出す。
func (u *User) Identity() *Identity {
	return &Identity{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
	}
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	Remember  bool
	ExpiresAt time.Time
	CreatedAt time.Time
}
