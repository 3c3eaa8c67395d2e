package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/labtrack/internal/model"
)

// TestWriteErrorResponse_WritesEnvelope はエラーがエンベロープ形式で書き込まれることを検証する。
func TestWriteErrorResponse_WritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusConflict, model.NewLabFullError())

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	env := decodeEnvelope(t, w)
	if env.Success {
		t.Error("success should be false")
	}
	if env.Error != "This laboratory is full" {
		t.Errorf("error = %q, want %q", env.Error, "This laboratory is full")
	}
	if env.Code != model.ErrCodeLabFull {
		t.Errorf("code = %q, want %q", env.Code, model.ErrCodeLabFull)
	}
	if env.Action == "" {
		t.Error("action should be set")
	}
	if env.Data != nil {
		t.Errorf("data = %v, want nil", env.Data)
	}
}

// TestWriteJSON_WrapsData は成功レスポンスがdataに包まれることを検証する。
func TestWriteJSON_WrapsData(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, http.StatusOK, map[string]string{"id": "lab-1"})

	env := decodeEnvelope(t, w)
	if !env.Success {
		t.Error("success should be true")
	}
	if env.Error != "" {
		t.Errorf("error = %q, want empty", env.Error)
	}
	data, ok := env.Data.(map[string]any)
	if !ok || data["id"] != "lab-1" {
		t.Errorf("data = %v, want map with id=lab-1", env.Data)
	}
}

// TestWriteInternalServerError_HidesDetails は内部エラーで詳細を返さないことを検証する。
func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
	env := decodeEnvelope(t, w)
	if env.Code != "INTERNAL_ERROR" || env.Error != "Internal server error" {
		t.Errorf("envelope = %+v", env)
	}
}

// TestRecoveryMiddleware_ReturnsEnvelopeOnPanic はpanicが500エンベロープに変換されログに残ることを検証する。
func TestRecoveryMiddleware_ReturnsEnvelopeOnPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := NewRecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/laboratories", nil))

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
	if env := decodeEnvelope(t, w); env.Success {
		t.Error("success should be false")
	}
	if !strings.Contains(buf.String(), `"panic":"boom"`) {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestRecoveryMiddleware_RepanicsOnAbortHandler(t *testing.T) {
	handler := NewRecoveryMiddleware(slog.New(slog.NewJSONHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	t.Error("expected panic to propagate")
}
