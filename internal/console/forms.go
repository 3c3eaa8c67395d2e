package console

import (
	"errors"
	"strings"

	"github.com/hitoshi/labtrack/internal/gateway"
)

// フォームの検証メッセージと失敗時の既定メッセージ。
const (
	msgRequiredFields   = "Email and password are required"
	msgPasswordMismatch = "Passwords do not match"
	msgTermsNotAgreed   = "You must agree to the Terms of Service"
	msgLoginFailed      = "Login failed"
	msgRegisterFailed   = "Registration failed"
)

// FormError はフォーム上に表示する入力エラー。ゲートウェイ呼び出し前に検出される。
type FormError struct {
	Message string
}

func (e *FormError) Error() string {
	return e.Message
}

// LoginForm はログイン画面の入力値。
type LoginForm struct {
	Email    string
	Password string
	Remember bool
}

// Validate は送信前の入力チェックを行う。
func (f LoginForm) Validate() error {
	if strings.TrimSpace(f.Email) == "" || f.Password == "" {
		return &FormError{Message: msgRequiredFields}
	}
	return nil
}

// RegisterForm は登録画面の入力値。
type RegisterForm struct {
	Email           string
	Password        string
	ConfirmPassword string
	AgreedToTerms   bool
}

// Validate は送信前の入力チェックを行う。
// パスワード不一致と利用規約未同意はゲートウェイを呼ぶ前にここで止める。
func (f RegisterForm) Validate() error {
	if strings.TrimSpace(f.Email) == "" || f.Password == "" {
		return &FormError{Message: msgRequiredFields}
	}
	if f.Password != f.ConfirmPassword {
		return &FormError{Message: msgPasswordMismatch}
	}
	if !f.AgreedToTerms {
		return &FormError{Message: msgTermsNotAgreed}
	}
	return nil
}

// errorMessage はフォームに表示する文言を返す。
// 入力エラーとゲートウェイのエラーはそのメッセージを、それ以外はfallbackを使う。
func errorMessage(err error, fallback string) string {
	var formErr *FormError
	if errors.As(err, &formErr) {
		return formErr.Message
	}
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return fallback
}
