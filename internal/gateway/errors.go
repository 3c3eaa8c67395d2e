package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind はゲートウェイが返すエラーの分類。
type ErrorKind int

const (
	// KindTransport はネットワーク到達不能、タイムアウト、不正なレスポンスを表す。
	KindTransport ErrorKind = iota
	// KindAuth は401以外の非2xx応答、またはsuccess=falseの応答を表す。
	// 認証情報不一致や重複登録など、フォーム上に表示するエラー。
	KindAuth
	// KindUnauthorized は401応答を表す。Unauthorizedシグナルも発火済み。
	KindUnauthorized
)

// String はログ用の分類名を返す。
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

const (
	// networkErrorMessage はトランスポートエラー時の利用者向けメッセージ。
	networkErrorMessage = "Network error. Please check your connection."
	// malformedResponseMessage はレスポンスを解釈できない場合のメッセージ。
	malformedResponseMessage = "Unexpected response from server."
	// requestFailedMessage はsuccess=falseでerrorが空の場合のメッセージ。
	requestFailedMessage = "Request failed"
)

// Error はゲートウェイ呼び出しの失敗結果。
// Messageは利用者にそのまま表示できる文言。
type Error struct {
	Kind       ErrorKind
	StatusCode int // HTTP応答がない場合は0
	Message    string
	Err        error // 原因（トランスポートエラー時のみ）
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return e.Message
}

// Unwrap は原因エラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf はerrがゲートウェイのエラーであればその分類を返す。
func KindOf(err error) (ErrorKind, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind, true
	}
	return 0, false
}

// IsUnauthorized はerrが401由来のエラーかどうかを返す。
func IsUnauthorized(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindUnauthorized
}

// httpErrorMessage はサーバーがerrorを返さなかった非2xx応答のメッセージ。
func httpErrorMessage(statusCode int) string {
	return fmt.Sprintf("HTTP error! status: %d", statusCode)
}
