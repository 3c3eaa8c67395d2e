// Package session はクライアント側の認証状態（誰がログインしているか）を管理する。
//
// Holderがアプリケーション内で唯一の認証状態の保持者であり、状態の変更は
// Initialize、SetAuthenticated、Clearの3つの入口からのみ行われる。
// 401応答を表すUnauthorizedシグナルもHolderが所有し、受信するとClearする。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/labtrack/internal/model"
)

// Status は認証状態を表す。
type Status int

const (
	// StatusLoading は起動時のセッション確認が未完了であることを示す。
	StatusLoading Status = iota
	// StatusAuthenticated はIdentityが存在することを示す。
	StatusAuthenticated
	// StatusAnonymous は未認証であることを示す。
	StatusAnonymous
)

// String はログ・表示用の状態名を返す。
func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

var (
	// ErrEmptyIdentity はSetAuthenticatedにIDのないIdentityが渡された場合のエラー。
	ErrEmptyIdentity = errors.New("session: identity must have a non-empty id")
	// ErrAlreadyInitialized はInitializeが2回以上呼ばれた場合のエラー。
	ErrAlreadyInitialized = errors.New("session: already initialized")
)

// Checker は起動時に既存セッションを確認する問い合わせ先。
// gateway.ClientのGetCurrentSessionが満たす。
type Checker interface {
	GetCurrentSession(ctx context.Context) (*model.Identity, error)
}

// Snapshot はある時点の認証状態。
// StatusがStatusAuthenticatedのときだけIdentityが非nilになる。
type Snapshot struct {
	Status   Status
	Identity *model.Identity
}

// Authenticated はIdentityを伴う認証済み状態かどうかを返す。
func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Identity != nil
}

// Holder は認証状態の唯一の保持者。
// 書き込みはUIの単一ゴルーチンから行う前提だが、別ゴルーチンからの読み取りでも
// 一貫したSnapshotが得られるよう内部でロックする。
type Holder struct {
	mu       sync.RWMutex
	status   Status
	identity *model.Identity

	initOnce sync.Once

	unauthorized *Signal
	changed      *Signal

	logger *slog.Logger
}

// NewHolder はStatusLoadingのHolderを生成する。
// 生成時にUnauthorizedシグナルへClearを1つだけ登録する。
func NewHolder(logger *slog.Logger) *Holder {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Holder{
		status:       StatusLoading,
		unauthorized: NewSignal(),
		changed:      NewSignal(),
		logger:       logger,
	}
	h.unauthorized.Subscribe(h.handleUnauthorized)
	return h
}

// Snapshot は現在の認証状態を返す。Identityはコピーで返す。
func (h *Holder) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Snapshot{Status: h.status, Identity: copyIdentity(h.identity)}
}

// Status は現在の認証状態を返す。
func (h *Holder) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Unauthorized はHolderが所有するUnauthorizedシグナルを返す。
// トランスポート層は401応答を受けたらBroadcastを呼ぶ。
func (h *Holder) Unauthorized() *Signal {
	return h.unauthorized
}

// Subscribe は状態が変化するたびに同期的に呼ばれるリスナーを登録する。
// 変化のないClearや同一IdentityでのSetAuthenticatedでは呼ばれない。
func (h *Holder) Subscribe(fn func(Snapshot)) func() {
	return h.changed.Subscribe(func() { fn(h.Snapshot()) })
}

// Initialize は起動時のセッション確認を1回だけ実行する。
// 確認中はStatusLoadingのまま。成功すればStatusAuthenticated、失敗すればStatusAnonymousになる。
// セッションなしはエラーではなく通常の結果なのでnilを返す。
// 確認中にctxがキャンセルされた場合は結果を破棄してctx.Err()を返す。
// 確認中に別の経路（Unauthorizedシグナル等）で状態が確定した場合は、そちらを優先する。
func (h *Holder) Initialize(ctx context.Context, checker Checker) error {
	err := ErrAlreadyInitialized
	h.initOnce.Do(func() {
		err = h.initialize(ctx, checker)
	})
	return err
}

func (h *Holder) initialize(ctx context.Context, checker Checker) error {
	identity, checkErr := checker.GetCurrentSession(ctx)
	if ctx.Err() != nil {
		h.logger.Debug("session check result discarded", slog.String("reason", ctx.Err().Error()))
		return ctx.Err()
	}

	h.mu.Lock()
	if h.status != StatusLoading {
		settled := h.status
		h.mu.Unlock()
		h.logger.Debug("session already settled during check", slog.String("status", settled.String()))
		return nil
	}
	if checkErr == nil && identity != nil && identity.ID != "" {
		h.status = StatusAuthenticated
		h.identity = copyIdentity(identity)
	} else {
		h.status = StatusAnonymous
		h.identity = nil
	}
	status := h.status
	h.mu.Unlock()

	if checkErr != nil {
		h.logger.Info("no existing session", slog.String("reason", checkErr.Error()))
	} else {
		h.logger.Info("session restored", slog.String("status", status.String()))
	}
	h.changed.Broadcast()
	return nil
}

// SetAuthenticated は即座にStatusAuthenticatedへ遷移する。
// ログインまたは登録の成功後に呼ぶ。
func (h *Holder) SetAuthenticated(identity *model.Identity) error {
	if identity == nil || identity.ID == "" {
		return ErrEmptyIdentity
	}

	h.mu.Lock()
	unchanged := h.status == StatusAuthenticated && h.identity != nil && *h.identity == *identity
	h.status = StatusAuthenticated
	h.identity = copyIdentity(identity)
	h.mu.Unlock()

	if unchanged {
		return nil
	}
	h.logger.Info("session authenticated", slog.String("user_id", identity.ID))
	h.changed.Broadcast()
	return nil
}

// Clear はIdentityを破棄してStatusAnonymousへ遷移する。
// 冪等で、既にStatusAnonymousなら何もしない。
func (h *Holder) Clear() {
	h.mu.Lock()
	if h.status == StatusAnonymous {
		h.mu.Unlock()
		return
	}
	h.status = StatusAnonymous
	h.identity = nil
	h.mu.Unlock()

	h.logger.Info("session cleared")
	h.changed.Broadcast()
}

func (h *Holder) handleUnauthorized() {
	h.logger.Warn("unauthorized signal received")
	h.Clear()
}

func copyIdentity(id *model.Identity) *model.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
