// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, laboratory, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeTermsNotAgreed     = "TERMS_NOT_AGREED"
	ErrCodeDuplicateAccount   = "DUPLICATE_ACCOUNT"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeLabNotFound        = "LAB_NOT_FOUND"
	ErrCodeLabFull            = "LAB_FULL"
	ErrCodeAlreadyJoined      = "ALREADY_JOINED"
	ErrCodeNotAMember         = "NOT_A_MEMBER"
	ErrCodeInvalidChecklist   = "INVALID_CHECKLIST"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Not authenticated",
		Category: "auth",
		Action:   "Please sign in again.",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// メールアドレスの存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewInvalidEmailError はメールアドレス形式エラーを生成する。
func NewInvalidEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  fmt.Sprintf("Invalid email address: %s", email),
		Category: "validation",
		Action:   "Enter a valid email address.",
	}
}

// NewWeakPasswordError はパスワード強度不足エラーを生成する。
func NewWeakPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("Password must be at least %d characters", minLength),
		Category: "validation",
		Action:   "Choose a longer password.",
	}
}

// NewPasswordTooLongError はパスワードが長すぎる場合のエラーを生成する。
// bcryptが扱える上限はバイト数で決まる。
func NewPasswordTooLongError(maxBytes int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("Password must be at most %d bytes", maxBytes),
		Category: "validation",
		Action:   "Choose a shorter password.",
	}
}

// NewTermsNotAgreedError は利用規約未同意エラーを生成する。
func NewTermsNotAgreedError() *APIError {
	return &APIError{
		Code:     ErrCodeTermsNotAgreed,
		Message:  "You must agree to the Terms of Service",
		Category: "validation",
		Action:   "Accept the Terms of Service to create an account.",
	}
}

// NewDuplicateAccountError は登録済みメールアドレスでの再登録エラーを生成する。
func NewDuplicateAccountError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateAccount,
		Message:  "An account with this email already exists",
		Category: "auth",
		Action:   "Sign in instead, or use a different email address.",
	}
}

// NewInvalidRequestError はリクエストボディ不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "Check the submitted fields.",
	}
}

// NewLabNotFoundError は研究室未検出エラーを生成する。
func NewLabNotFoundError(labID string) *APIError {
	return &APIError{
		Code:     ErrCodeLabNotFound,
		Message:  fmt.Sprintf("Laboratory not found: %s", labID),
		Category: "laboratory",
		Action:   "Reload the laboratory list.",
	}
}

// NewLabFullError は定員超過エラーを生成する。
func NewLabFullError() *APIError {
	return &APIError{
		Code:     ErrCodeLabFull,
		Message:  "This laboratory is full",
		Category: "laboratory",
		Action:   "Choose another laboratory or try again later.",
	}
}

// NewAlreadyJoinedError は参加済み研究室への再参加エラーを生成する。
func NewAlreadyJoinedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyJoined,
		Message:  "You have already joined this laboratory",
		Category: "laboratory",
		Action:   "Check your memberships on the dashboard.",
	}
}

// NewNotAMemberError は未参加研究室からの退出エラーを生成する。
func NewNotAMemberError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAMember,
		Message:  "You are not a member of this laboratory",
		Category: "laboratory",
		Action:   "Reload the laboratory list.",
	}
}

// NewInvalidChecklistError はアンケート回答の範囲外エラーを生成する。
func NewInvalidChecklistError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidChecklist,
		Message:  fmt.Sprintf("Invalid assessment answer: %s", reason),
		Category: "validation",
		Action:   "Review your answers and submit the assessment again.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Please sign in again.",
	}
}
