package console

import (
	"sync"

	"github.com/hitoshi/labtrack/internal/guard"
	"github.com/hitoshi/labtrack/internal/session"
)

// Navigator は画面の履歴スタックを管理し、遷移のたびと認証状態が変わるたびに
// ルートガードで表示画面を決め直す。
// ガードによる転送は履歴の先頭を置き換えるため、Backで保護画面と入口画面を往復しない。
type Navigator struct {
	mu       sync.Mutex
	holder   *session.Holder
	history  []guard.View
	decision guard.Decision

	listeners   []func(guard.Decision)
	unsubscribe func()
}

// NewNavigator はinitialを最初の履歴としてNavigatorを生成する。
// holderの状態変化を購読し、変化のたびに現在の画面を再評価する。
func NewNavigator(holder *session.Holder, initial guard.View) *Navigator {
	n := &Navigator{
		holder:  holder,
		history: []guard.View{initial},
	}
	n.resolveLocked(holder.Snapshot())
	n.unsubscribe = holder.Subscribe(func(snap session.Snapshot) {
		n.mu.Lock()
		d := n.resolveLocked(snap)
		listeners := n.listenersLocked()
		n.mu.Unlock()
		notify(listeners, d)
	})
	return n
}

// Close は認証状態の購読を解除する。
func (n *Navigator) Close() {
	n.unsubscribe()
}

// OnChange は表示画面が決め直されるたびに呼ばれるリスナーを登録する。
func (n *Navigator) OnChange(fn func(guard.Decision)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, fn)
}

// Current は現在の判定を返す。
func (n *Navigator) Current() guard.Decision {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.decision
}

// History は履歴スタックのコピーを返す。末尾が現在の画面。
func (n *Navigator) History() []guard.View {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]guard.View, len(n.history))
	copy(out, n.history)
	return out
}

// Navigate は画面を履歴に積んで遷移する。
func (n *Navigator) Navigate(v guard.View) guard.Decision {
	n.mu.Lock()
	n.history = append(n.history, v)
	d := n.resolveLocked(n.holder.Snapshot())
	listeners := n.listenersLocked()
	n.mu.Unlock()

	notify(listeners, d)
	return d
}

// Redirect は履歴の先頭を置き換えて遷移する。
func (n *Navigator) Redirect(v guard.View) guard.Decision {
	n.mu.Lock()
	n.history[len(n.history)-1] = v
	d := n.resolveLocked(n.holder.Snapshot())
	listeners := n.listenersLocked()
	n.mu.Unlock()

	notify(listeners, d)
	return d
}

// Back は1つ前の画面に戻る。戻れない場合はfalseを返す。
func (n *Navigator) Back() (guard.Decision, bool) {
	n.mu.Lock()
	if len(n.history) < 2 {
		d := n.decision
		n.mu.Unlock()
		return d, false
	}
	n.history = n.history[:len(n.history)-1]
	d := n.resolveLocked(n.holder.Snapshot())
	listeners := n.listenersLocked()
	n.mu.Unlock()

	notify(listeners, d)
	return d, true
}

// resolveLocked は履歴の先頭をガードで評価し、転送であれば先頭を置き換える。
// 転送先が直前の履歴と同じ場合は重複させずに先頭を取り除く。
// 転送先はガードが必ず許可する画面なので、置き換えは高々1回で収束する。
func (n *Navigator) resolveLocked(snap session.Snapshot) guard.Decision {
	top := len(n.history) - 1
	d := guard.Resolve(snap, n.history[top])
	if d.Outcome == guard.OutcomeRedirect {
		if top > 0 && n.history[top-1] == d.View {
			n.history = n.history[:top]
		} else {
			n.history[top] = d.View
		}
		d = guard.Resolve(snap, d.View)
	}
	n.decision = d
	return d
}

func (n *Navigator) listenersLocked() []func(guard.Decision) {
	out := make([]func(guard.Decision), len(n.listeners))
	copy(out, n.listeners)
	return out
}

func notify(listeners []func(guard.Decision), d guard.Decision) {
	for _, fn := range listeners {
		fn(d)
	}
}
