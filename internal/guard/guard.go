// Package guard は認証状態から到達可能な画面を決定するルートガードを提供する。
//
// Resolveは副作用のない純粋関数で、画面遷移のたびと認証状態が変わるたびに再評価される。
package guard

import (
	"strings"

	"github.com/hitoshi/labtrack/internal/session"
)

// View はトップレベルの画面を表す。値はパス形式。
type View string

const (
	ViewRoot      View = "/"
	ViewLogin     View = "/login"
	ViewRegister  View = "/register"
	ViewDashboard View = "/dashboard"
	ViewFAQ       View = "/faq"
)

const (
	// DefaultEntryView は未認証ユーザーの転送先。
	DefaultEntryView = ViewLogin
	// DefaultProtectedView は認証済みユーザーの転送先。
	DefaultProtectedView = ViewDashboard
)

// Access は画面のアクセス区分。
type Access int

const (
	// AccessIndex は認証状態に応じて既定画面へ振り分ける画面（ルートや未知のパス）。
	AccessIndex Access = iota
	// AccessPublic は認証状態に関係なく表示できる画面。
	AccessPublic
	// AccessEntry は未認証時のみ意味を持つ画面（ログイン、登録）。
	AccessEntry
	// AccessProtected は認証が必要な画面。
	AccessProtected
)

// Classify は画面のアクセス区分を返す。
func Classify(v View) Access {
	switch v {
	case ViewFAQ:
		return AccessPublic
	case ViewLogin, ViewRegister:
		return AccessEntry
	case ViewDashboard:
		return AccessProtected
	default:
		return AccessIndex
	}
}

// ParseView は "dashboard" や "/faq" のような入力を画面に変換する。
// 既知の画面でない場合はfalseを返す。
func ParseView(s string) (View, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ViewRoot, true
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	v := View(strings.TrimRight(s, "/"))
	if v == "" {
		return ViewRoot, true
	}
	switch v {
	case ViewLogin, ViewRegister, ViewDashboard, ViewFAQ:
		return v, true
	default:
		return v, false
	}
}

// Outcome はガードの判定種別。
type Outcome int

const (
	// OutcomeAllow は要求された画面をそのまま表示する。
	OutcomeAllow Outcome = iota
	// OutcomeRedirect は別の画面へ置換遷移する（履歴を増やさない）。
	OutcomeRedirect
	// OutcomePending はセッション確認中のため判定を保留し、待機表示を出す。
	OutcomePending
)

// String はログ・表示用の判定名を返す。
func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeRedirect:
		return "redirect"
	case OutcomePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Decision はガードの判定結果。
// OutcomeRedirectのときViewは転送先、それ以外では要求された画面。
type Decision struct {
	Outcome Outcome
	View    View
}

// Resolve は認証状態と要求画面から表示すべき画面を決定する。
//
//	public                              → 常に許可（確認中も含む）
//	Loading                             → 保留
//	Anonymous     + protected / index   → ログイン画面へ転送
//	Anonymous     + entry               → 許可
//	Authenticated + entry / index       → ダッシュボードへ転送
//	Authenticated + protected           → 許可
func Resolve(snap session.Snapshot, requested View) Decision {
	access := Classify(requested)

	if access == AccessPublic {
		return Decision{Outcome: OutcomeAllow, View: requested}
	}
	if snap.Status == session.StatusLoading {
		return Decision{Outcome: OutcomePending, View: requested}
	}

	if snap.Authenticated() {
		switch access {
		case AccessProtected:
			return Decision{Outcome: OutcomeAllow, View: requested}
		default:
			return Decision{Outcome: OutcomeRedirect, View: DefaultProtectedView}
		}
	}

	switch access {
	case AccessEntry:
		return Decision{Outcome: OutcomeAllow, View: requested}
	default:
		return Decision{Outcome: OutcomeRedirect, View: DefaultEntryView}
	}
}
