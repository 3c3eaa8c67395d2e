package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hitoshi/labtrack/internal/guard"
	"github.com/hitoshi/labtrack/internal/model"
)

// errQuit はコマンドループの終了要求。
var errQuit = errors.New("quit")

// errInputClosed は入力の途中で標準入力が閉じられたことを表す。
var errInputClosed = errors.New("input closed")

const helpText = `Commands:
  help                 show this help
  whoami               show the current session
  go <view>            open a view (login, register, dashboard, faq)
  back                 return to the previous view
  login                sign in
  register             create an account
  logout               sign out
  labs [search]        list laboratories
  join <n|id>          join a laboratory (answers a short checklist)
  leave <n|id>         leave a laboratory
  faq [search]         search the FAQ
  faq -c <category>    filter the FAQ by category
  expand <id>          show or hide a FAQ answer
  quit                 exit`

// REPL は1行1コマンドの対話ループ。
type REPL struct {
	app *App
	in  *bufio.Scanner
	out io.Writer
}

// NewREPL はinから読み、outへ書くREPLを生成する。
func NewREPL(app *App, in io.Reader, out io.Writer) *REPL {
	return &REPL{
		app: app,
		in:  bufio.NewScanner(in),
		out: out,
	}
}

// Run はセッション確認を行ってからコマンドを読み続ける。
// quitか入力の終端で正常終了し、ctxがキャンセルされるとctx.Err()を返す。
func (r *REPL) Run(ctx context.Context) error {
	if err := r.app.Start(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, ok := r.prompt("> ")
		if !ok {
			return r.in.Err()
		}
		err := r.dispatch(ctx, line)
		switch {
		case errors.Is(err, errQuit), errors.Is(err, errInputClosed):
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		}
	}
}

func (r *REPL) prompt(label string) (string, bool) {
	fmt.Fprint(r.out, label)
	if !r.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.in.Text()), true
}

func (r *REPL) ask(label string) (string, error) {
	s, ok := r.prompt(label)
	if !ok {
		return "", errInputClosed
	}
	return s, nil
}

func (r *REPL) confirm(label string) (bool, error) {
	s, err := r.ask(label + " [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(s) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (r *REPL) askInt(label string, def int) (int, error) {
	for {
		s, err := r.ask(label)
		if err != nil {
			return 0, err
		}
		if s == "" {
			return def, nil
		}
		n, err := strconv.Atoi(s)
		if err == nil {
			return n, nil
		}
		fmt.Fprintln(r.out, "Please enter a number.")
	}
}

// dispatch は1行分のコマンドを実行して画面を描画し直す。
func (r *REPL) dispatch(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch strings.ToLower(cmd) {
	case "":
		return nil
	case "help", "?":
		fmt.Fprintln(r.out, helpText)
		return nil
	case "whoami":
		r.whoami()
		return nil
	case "quit", "exit":
		return errQuit
	case "go":
		v, known := guard.ParseView(arg)
		if !known {
			fmt.Fprintf(r.out, "Unknown view %q.\n", arg)
		}
		r.app.Go(ctx, v)
	case "back":
		if !r.app.Back(ctx) {
			fmt.Fprintln(r.out, "Nothing to go back to.")
		}
	case "login":
		err = r.login(ctx)
	case "register":
		err = r.register(ctx)
	case "logout":
		err = r.app.Logout(ctx)
	case "labs":
		if r.onView(ctx, guard.ViewDashboard) {
			err = r.app.LoadLaboratories(ctx, arg)
		}
	case "join":
		if r.onView(ctx, guard.ViewDashboard) {
			err = r.join(ctx, arg)
		}
	case "leave":
		if r.onView(ctx, guard.ViewDashboard) {
			err = r.app.LeaveLaboratory(ctx, arg)
		}
	case "faq":
		if r.onView(ctx, guard.ViewFAQ) {
			r.faq(arg)
		}
	case "expand":
		if r.onView(ctx, guard.ViewFAQ) {
			if !r.app.ToggleFAQ(arg) {
				fmt.Fprintf(r.out, "Unknown question %q.\n", arg)
			}
		}
	default:
		fmt.Fprintf(r.out, "Unknown command %q. Type 'help' for a list of commands.\n", cmd)
		return nil
	}

	if errors.Is(err, errInputClosed) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	r.app.Render()
	return nil
}

// onView は必要ならviewへ遷移し、ガードの結果viewが表示されていればtrueを返す。
func (r *REPL) onView(ctx context.Context, view guard.View) bool {
	if d := r.app.nav.Current(); d.Outcome == guard.OutcomeAllow && d.View == view {
		return true
	}
	d := r.app.Go(ctx, view)
	return d.Outcome == guard.OutcomeAllow && d.View == view
}

func (r *REPL) whoami() {
	snap := r.app.holder.Snapshot()
	if snap.Identity == nil {
		fmt.Fprintf(r.out, "Status: %s\n", snap.Status)
		return
	}
	fmt.Fprintf(r.out, "Status: %s\nUser: %s <%s>\n", snap.Status, displayName(snap.Identity), snap.Identity.Email)
}

func (r *REPL) login(ctx context.Context) error {
	if !r.onView(ctx, guard.ViewLogin) {
		fmt.Fprintln(r.out, "You are already signed in.")
		return nil
	}

	var form LoginForm
	var err error
	if form.Email, err = r.ask("Email: "); err != nil {
		return err
	}
	if form.Password, err = r.ask("Password: "); err != nil {
		return err
	}
	if form.Remember, err = r.confirm("Remember me?"); err != nil {
		return err
	}
	return r.app.Login(ctx, form)
}

func (r *REPL) register(ctx context.Context) error {
	if !r.onView(ctx, guard.ViewRegister) {
		fmt.Fprintln(r.out, "You are already signed in.")
		return nil
	}

	var form RegisterForm
	var err error
	if form.Email, err = r.ask("Email: "); err != nil {
		return err
	}
	if form.Password, err = r.ask("Password: "); err != nil {
		return err
	}
	if form.ConfirmPassword, err = r.ask("Confirm password: "); err != nil {
		return err
	}
	if form.AgreedToTerms, err = r.confirm("Do you agree to the Terms of Service?"); err != nil {
		return err
	}
	return r.app.Register(ctx, form)
}

func (r *REPL) join(ctx context.Context, ref string) error {
	if ref == "" {
		fmt.Fprintln(r.out, "Usage: join <n|id>")
		return nil
	}

	var answers model.ChecklistAnswers
	var err error
	if answers.MultipleMonitors, err = r.confirm("Do you use more than one monitor?"); err != nil {
		return err
	}
	if answers.MultipleMonitors {
		if answers.MaxMonitors, err = r.askInt("How many monitors at most? (1-10): ", 2); err != nil {
			return err
		}
	}
	if answers.ULTFreezers, err = r.askInt("How many ULT freezers does your group use? (default 0): ", 0); err != nil {
		return err
	}
	if answers.ULTFreezers > 0 {
		if answers.FreezerTemperature, err = r.askInt(
			fmt.Sprintf("Freezer set-point in C (default %d): ", model.DefaultFreezerTemperature),
			model.DefaultFreezerTemperature); err != nil {
			return err
		}
	}
	return r.app.JoinLaboratory(ctx, ref, answers)
}

func (r *REPL) faq(arg string) {
	if rest, ok := strings.CutPrefix(arg, "-c"); ok {
		category := strings.TrimSpace(rest)
		if !r.app.FilterFAQ(category) {
			fmt.Fprintf(r.out, "Unknown category %q.\n", category)
		}
		return
	}
	r.app.SearchFAQ(arg)
}
