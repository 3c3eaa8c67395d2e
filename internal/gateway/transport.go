// Package gateway は認証APIとの通信を担うクライアントを提供する。
//
// すべてのリクエスト・レスポンスはJSONで、レスポンスは
// {"success": bool, "error": string, "data": T} のエンベロープに従う。
// ネットワークエラーと非2xx応答はどちらも*Errorとして返し、panicは外へ漏らさない。
// 401応答を受けた場合は、呼び出し元にエラーを返す前にUnauthorizedシグナルを発火する。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 1 << 20
	userAgent       = "labtrack-console/1.0"
)

// Notifier は401応答を受けたときに通知する先。
// session.HolderのUnauthorized()が返す*session.Signalが満たす。
type Notifier interface {
	Broadcast()
}

// envelope はAPIレスポンスの共通形式。
type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Client は認証APIのクライアント。
// Cookieはhttp.ClientのJarで自動的に送受信する。
type Client struct {
	httpClient *http.Client
	notifier   Notifier
	logger     *slog.Logger
	baseURL    string
}

// NewHTTPClient はセッションCookieを保持するJar付きのhttp.Clientを生成する。
// CookieのドメインスコープはPublic Suffix Listに従う。
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
	}, nil
}

// NewClient はClientを生成する。
// notifierがnilの場合は401応答時の通知を行わない。
func NewClient(baseURL string, httpClient *http.Client, notifier Notifier, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		notifier:   notifier,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// do は1回のAPI呼び出しを行い、成功時はdataをoutにデコードする。
// outがnilの場合はdataを読み捨てる。
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindTransport, Message: malformedResponseMessage, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &Error{Kind: KindTransport, Message: networkErrorMessage, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("API call failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return &Error{Kind: KindTransport, Message: networkErrorMessage, Err: err}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))

	c.logger.Debug("API call completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.handleErrorResponse(resp.StatusCode, raw)
	}

	if readErr != nil {
		return &Error{Kind: KindTransport, StatusCode: resp.StatusCode, Message: networkErrorMessage, Err: readErr}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Error("failed to parse API response",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return &Error{Kind: KindTransport, StatusCode: resp.StatusCode, Message: malformedResponseMessage, Err: err}
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = requestFailedMessage
		}
		return &Error{Kind: KindAuth, StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &Error{Kind: KindTransport, StatusCode: resp.StatusCode, Message: malformedResponseMessage, Err: err}
		}
	}
	return nil
}

// handleErrorResponse は非2xx応答をエラーに変換する。
// サーバーのerrorフィールドを優先し、なければステータスコード入りの汎用メッセージを使う。
// 401の場合はエラーを返す前にUnauthorizedシグナルを発火する。
func (c *Client) handleErrorResponse(statusCode int, raw []byte) error {
	var env envelope
	msg := ""
	if err := json.Unmarshal(raw, &env); err == nil {
		msg = env.Error
	}
	if msg == "" {
		msg = httpErrorMessage(statusCode)
	}

	if statusCode == http.StatusUnauthorized {
		c.logger.Warn("API returned unauthorized", slog.Int("http_status", statusCode))
		if c.notifier != nil {
			c.notifier.Broadcast()
		}
		return &Error{Kind: KindUnauthorized, StatusCode: statusCode, Message: msg}
	}

	return &Error{Kind: KindAuth, StatusCode: statusCode, Message: msg}
}
