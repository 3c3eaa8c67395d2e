// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/labtrack/internal/middleware"
	"github.com/hitoshi/labtrack/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限。
const maxRequestBodySize = 64 << 10

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorのコードをHTTPステータスコードに対応づける。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidCredentials:
		// 401はクライアント側でセッション破棄の合図になるため、資格情報の誤りは400で返す
		return http.StatusBadRequest
	case model.ErrCodeInvalidEmail, model.ErrCodeWeakPassword, model.ErrCodeTermsNotAgreed,
		model.ErrCodeInvalidRequest, model.ErrCodeInvalidChecklist:
		return http.StatusBadRequest
	case model.ErrCodeDuplicateAccount, model.ErrCodeLabFull, model.ErrCodeAlreadyJoined:
		return http.StatusConflict
	case model.ErrCodeLabNotFound, model.ErrCodeNotAMember, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON はリクエストボディをdstにデコードする。
// 未知のフィールドと複数のJSON値は拒否する。
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewInvalidRequestError("request body is empty")
		}
		return model.NewInvalidRequestError("malformed JSON")
	}
	if dec.More() {
		return model.NewInvalidRequestError("unexpected data after JSON body")
	}
	return nil
}

// requireUserID はコンテキストのユーザーIDを返す。ない場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}
