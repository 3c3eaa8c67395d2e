// Package console は対話型コンソールのフロントエンドを提供する。
//
// 画面はNavigatorがルートガードで決め、認証状態はsession.Holderが保持する。
// すべての操作は単一のコマンドループから呼ばれる前提で、ゲートウェイ呼び出しの間はループを止める。
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/hitoshi/labtrack/internal/faq"
	"github.com/hitoshi/labtrack/internal/gateway"
	"github.com/hitoshi/labtrack/internal/guard"
	"github.com/hitoshi/labtrack/internal/laboratory"
	"github.com/hitoshi/labtrack/internal/model"
	"github.com/hitoshi/labtrack/internal/session"
)

// Gateway はコンソールが利用するAPI操作。gateway.Clientが満たす。
type Gateway interface {
	Login(ctx context.Context, email, password string, rememberMe bool) (*model.Identity, error)
	Register(ctx context.Context, email, password string, agreedToTerms bool) (*model.Identity, error)
	Logout(ctx context.Context) error
	GetCurrentSession(ctx context.Context) (*model.Identity, error)
	ListLaboratories(ctx context.Context, query string) ([]gateway.Laboratory, error)
	JoinLaboratory(ctx context.Context, labID string, answers model.ChecklistAnswers) (*gateway.JoinResult, error)
	LeaveLaboratory(ctx context.Context, labID string) error
	ListFAQ(ctx context.Context) ([]model.FAQItem, error)
}

var _ Gateway = (*gateway.Client)(nil)

// ErrLabNotFound は一覧にない研究室を指定したときのエラー。
var ErrLabNotFound = errors.New("laboratory not found in the current list")

type dashboardState struct {
	loaded     bool
	query      string
	labs       []gateway.Laboratory
	lastJoin   *gateway.JoinResult
	message    string
	errMessage string
}

type faqState struct {
	loaded   bool
	items    []model.FAQItem
	query    string
	category string
	expanded faq.Expanded
}

// App はコンソールの画面状態をまとめる。
type App struct {
	gw     Gateway
	holder *session.Holder
	nav    *Navigator
	out    io.Writer
	logger *slog.Logger

	shown     guard.Decision
	formError string
	dashboard dashboardState
	faq       faqState

	unsubscribe func()
}

// NewApp はルート画面から始まるAppを生成する。
// セッションが未認証になったときはダッシュボードの状態を破棄する。
// 表示画面が変わるとフォームのエラー表示を消す。
func NewApp(gw Gateway, holder *session.Holder, out io.Writer, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		gw:     gw,
		holder: holder,
		nav:    NewNavigator(holder, guard.ViewRoot),
		out:    out,
		logger: logger,
		faq:    faqState{category: faq.AllCategories, expanded: faq.Expanded{}},
	}
	a.shown = a.nav.Current()
	a.nav.OnChange(a.viewResolved)
	a.unsubscribe = holder.Subscribe(func(snap session.Snapshot) {
		if !snap.Authenticated() {
			a.dashboard = dashboardState{}
		}
	})
	return a
}

func (a *App) viewResolved(d guard.Decision) {
	if d == a.shown {
		return
	}
	a.logger.Debug("view changed",
		slog.String("from", string(a.shown.View)),
		slog.String("to", string(d.View)),
		slog.String("outcome", d.Outcome.String()),
	)
	a.shown = d
	a.formError = ""
}

// Close は購読を解除する。
func (a *App) Close() {
	a.unsubscribe()
	a.nav.Close()
}

// Navigator は画面遷移を管理するNavigatorを返す。
func (a *App) Navigator() *Navigator {
	return a.nav
}

// Start は待機表示を描画してから起動時のセッション確認を行い、結果の画面を描画する。
func (a *App) Start(ctx context.Context) error {
	a.Render()
	if err := a.holder.Initialize(ctx, a.gw); err != nil {
		return fmt.Errorf("failed to initialize session: %w", err)
	}
	a.enterView(ctx)
	a.Render()
	return nil
}

// Go は指定した画面へ遷移する。
func (a *App) Go(ctx context.Context, v guard.View) guard.Decision {
	d := a.nav.Navigate(v)
	a.enterView(ctx)
	return d
}

// Back は1つ前の画面へ戻る。
func (a *App) Back(ctx context.Context) bool {
	_, ok := a.nav.Back()
	a.enterView(ctx)
	return ok
}

// Login はフォームを検証してログインする。
// 成功すると認証状態が更新され、ガードによりダッシュボードへ転送される。
func (a *App) Login(ctx context.Context, form LoginForm) error {
	if err := form.Validate(); err != nil {
		a.formError = errorMessage(err, msgLoginFailed)
		return err
	}

	identity, err := a.gw.Login(ctx, strings.TrimSpace(form.Email), form.Password, form.Remember)
	if ctx.Err() != nil {
		a.logger.Debug("login result discarded", slog.String("reason", ctx.Err().Error()))
		return ctx.Err()
	}
	if err != nil {
		a.formError = errorMessage(err, msgLoginFailed)
		return err
	}
	return a.authenticated(ctx, identity, msgLoginFailed)
}

// Register はフォームを検証して新規登録する。
// 入力エラーはゲートウェイを呼ぶ前に返す。
func (a *App) Register(ctx context.Context, form RegisterForm) error {
	if err := form.Validate(); err != nil {
		a.formError = errorMessage(err, msgRegisterFailed)
		return err
	}

	identity, err := a.gw.Register(ctx, strings.TrimSpace(form.Email), form.Password, form.AgreedToTerms)
	if ctx.Err() != nil {
		a.logger.Debug("register result discarded", slog.String("reason", ctx.Err().Error()))
		return ctx.Err()
	}
	if err != nil {
		a.formError = errorMessage(err, msgRegisterFailed)
		return err
	}
	return a.authenticated(ctx, identity, msgRegisterFailed)
}

func (a *App) authenticated(ctx context.Context, identity *model.Identity, fallback string) error {
	if err := a.holder.SetAuthenticated(identity); err != nil {
		a.formError = fallback
		return fmt.Errorf("failed to set session: %w", err)
	}
	a.formError = ""
	a.enterView(ctx)
	return nil
}

// Logout はサーバー側のセッションを破棄し、結果にかかわらず認証状態をクリアする。
func (a *App) Logout(ctx context.Context) error {
	err := a.gw.Logout(ctx)
	a.holder.Clear()
	if err != nil {
		a.logger.Warn("logout request failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// LoadLaboratories はqueryで絞り込んだ研究室一覧を取得する。
func (a *App) LoadLaboratories(ctx context.Context, query string) error {
	labs, err := a.gw.ListLaboratories(ctx, query)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		if !gateway.IsUnauthorized(err) {
			a.dashboard.errMessage = errorMessage(err, "Failed to load laboratories")
		}
		return err
	}
	a.dashboard.loaded = true
	a.dashboard.query = query
	a.dashboard.labs = labs
	a.dashboard.errMessage = ""
	return nil
}

// JoinLaboratory はアンケート回答を添えて研究室に参加する。
// refは一覧の番号（1始まり）または研究室ID。
func (a *App) JoinLaboratory(ctx context.Context, ref string, answers model.ChecklistAnswers) error {
	idx, err := a.findLab(ref)
	if err != nil {
		a.dashboard.errMessage = err.Error()
		return err
	}
	answers, err = laboratory.NormalizeAnswers(answers)
	if err != nil {
		a.dashboard.errMessage = err.Error()
		return err
	}

	result, err := a.gw.JoinLaboratory(ctx, a.dashboard.labs[idx].ID, answers)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		if !gateway.IsUnauthorized(err) {
			a.dashboard.errMessage = errorMessage(err, "Failed to join laboratory")
		}
		return err
	}

	a.dashboard.labs[idx] = result.Laboratory
	a.dashboard.lastJoin = result
	a.dashboard.message = fmt.Sprintf("Joined %s.", result.Laboratory.Name)
	a.dashboard.errMessage = ""
	return nil
}

// LeaveLaboratory は研究室から脱退する。
func (a *App) LeaveLaboratory(ctx context.Context, ref string) error {
	idx, err := a.findLab(ref)
	if err != nil {
		a.dashboard.errMessage = err.Error()
		return err
	}
	lab := a.dashboard.labs[idx]

	err = a.gw.LeaveLaboratory(ctx, lab.ID)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		if !gateway.IsUnauthorized(err) {
			a.dashboard.errMessage = errorMessage(err, "Failed to leave laboratory")
		}
		return err
	}

	if lab.IsJoined && lab.CurrentMembers > 0 {
		lab.CurrentMembers--
	}
	lab.IsJoined = false
	a.dashboard.labs[idx] = lab
	if a.dashboard.lastJoin != nil && a.dashboard.lastJoin.Laboratory.ID == lab.ID {
		a.dashboard.lastJoin = nil
	}
	a.dashboard.message = fmt.Sprintf("Left %s.", lab.Name)
	a.dashboard.errMessage = ""
	return nil
}

func (a *App) findLab(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(a.dashboard.labs) {
		return n - 1, nil
	}
	for i, lab := range a.dashboard.labs {
		if lab.ID == ref {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrLabNotFound, ref)
}

// LoadFAQ はFAQ項目を取得する。APIに届かない場合は同梱の項目を使う。
func (a *App) LoadFAQ(ctx context.Context) {
	items, err := a.gw.ListFAQ(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		a.logger.Warn("falling back to bundled FAQ", slog.String("error", err.Error()))
		items = faq.All()
	}
	a.faq.items = items
	a.faq.loaded = true
}

// SearchFAQ は検索語を設定する。
func (a *App) SearchFAQ(query string) {
	a.faq.query = strings.TrimSpace(query)
}

// FilterFAQ はカテゴリを設定する。未知のカテゴリはfalseを返す。
func (a *App) FilterFAQ(category string) bool {
	for _, c := range faq.Categories(a.faq.items) {
		if strings.EqualFold(c, category) {
			a.faq.category = c
			return true
		}
	}
	return false
}

// ToggleFAQ は表示中の項目の回答の開閉を切り替える。
// 存在しない、または検索・カテゴリで隠れているIDはfalseを返し、何も変えない。
func (a *App) ToggleFAQ(id string) bool {
	id = strings.TrimSpace(id)
	visible := faq.Filter(a.faq.items, a.faq.query, a.faq.category)
	if !slices.ContainsFunc(visible, func(item model.FAQItem) bool { return item.ID == id }) {
		return false
	}
	a.faq.expanded.Toggle(id)
	return true
}

// enterView は表示中の画面が必要とするデータを読み込む。
func (a *App) enterView(ctx context.Context) {
	d := a.nav.Current()
	if d.Outcome != guard.OutcomeAllow {
		return
	}
	switch d.View {
	case guard.ViewDashboard:
		if !a.dashboard.loaded {
			if err := a.LoadLaboratories(ctx, ""); err != nil {
				a.logger.Warn("failed to load laboratories", slog.String("error", err.Error()))
			}
		}
	case guard.ViewFAQ:
		if !a.faq.loaded {
			a.LoadFAQ(ctx)
		}
	}
}
