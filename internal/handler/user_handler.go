package handler

import (
	"context"
	"net/http"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーを削除する。セッションと研究室への参加も削除される。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	auth    *AuthHandler
}

// NewUserHandler はUserHandlerを生成する。
// 退会後にセッションCookieを消すため、authHandlerのCookie設定を共有する。
func NewUserHandler(service UserServiceInterface, authHandler *AuthHandler) *UserHandler {
	return &UserHandler{
		service: service,
		auth:    authHandler,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	if h.auth != nil {
		h.auth.clearSessionCookie(w)
	}
	w.WriteHeader(http.StatusNoContent)
}
