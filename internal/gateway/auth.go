package gateway

import (
	"context"
	"net/http"

	"github.com/hitoshi/labtrack/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type registerRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	AgreedToTerms bool   `json:"agreedToTerms"`
}

// Login はメールアドレスとパスワードでログインし、セッションを確立する。
// セッションCookieはClientのJarが保持する。
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (*model.Identity, error) {
	var identity model.Identity
	err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{
		Email:    email,
		Password: password,
		Remember: rememberMe,
	}, &identity)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// Register はアカウントを作成し、そのままセッションを確立する。
// パスワード確認と利用規約同意の検証は呼び出し元の責務で、ここでは再検証しない。
func (c *Client) Register(ctx context.Context, email, password string, agreedToTerms bool) (*model.Identity, error) {
	var identity model.Identity
	err := c.do(ctx, http.MethodPost, "/auth/register", registerRequest{
		Email:         email,
		Password:      password,
		AgreedToTerms: agreedToTerms,
	}, &identity)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// Logout は現在のセッションを無効化する。
// 既にログアウト済み（401）の場合もエラーにしない。
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if IsUnauthorized(err) {
		return nil
	}
	return err
}

// GetCurrentSession はCookieに残っている既存セッションを確認する。
// セッションがない場合は通常の結果としてエラーを返す。
func (c *Client) GetCurrentSession(ctx context.Context) (*model.Identity, error) {
	var identity model.Identity
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Health はAPIサーバーが応答可能かどうかを返す。
func (c *Client) Health(ctx context.Context) bool {
	return c.do(ctx, http.MethodGet, "/health", nil, nil) == nil
}
