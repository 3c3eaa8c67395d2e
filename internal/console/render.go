package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/hitoshi/labtrack/internal/faq"
	"github.com/hitoshi/labtrack/internal/gateway"
	"github.com/hitoshi/labtrack/internal/guard"
	"github.com/hitoshi/labtrack/internal/model"
)

const loadingText = "Loading..."

// Render は現在の画面を出力する。
func (a *App) Render() {
	d := a.nav.Current()
	w := a.out

	if d.Outcome == guard.OutcomePending {
		fmt.Fprintln(w, loadingText)
		return
	}

	switch d.View {
	case guard.ViewLogin:
		a.renderLogin(w)
	case guard.ViewRegister:
		a.renderRegister(w)
	case guard.ViewDashboard:
		a.renderDashboard(w)
	case guard.ViewFAQ:
		a.renderFAQ(w)
	default:
		fmt.Fprintln(w, loadingText)
	}
}

func (a *App) renderLogin(w io.Writer) {
	fmt.Fprintln(w, "== Sign in to labtrack ==")
	a.renderFormError(w)
	fmt.Fprintln(w, "Type 'login' to sign in, 'go register' to create an account, or 'go faq' for help.")
}

func (a *App) renderRegister(w io.Writer) {
	fmt.Fprintln(w, "== Create your account ==")
	a.renderFormError(w)
	fmt.Fprintln(w, "Type 'register' to sign up, or 'go login' if you already have an account.")
}

func (a *App) renderFormError(w io.Writer) {
	if a.formError != "" {
		fmt.Fprintf(w, "! %s\n", a.formError)
	}
}

func (a *App) renderDashboard(w io.Writer) {
	snap := a.holder.Snapshot()
	fmt.Fprintln(w, "== Lab Dashboard ==")
	if snap.Identity != nil {
		fmt.Fprintf(w, "Signed in as %s\n", displayName(snap.Identity))
	}

	st := a.dashboard
	if st.message != "" {
		fmt.Fprintln(w, st.message)
	}
	if st.errMessage != "" {
		fmt.Fprintf(w, "! %s\n", st.errMessage)
	}
	if st.query != "" {
		fmt.Fprintf(w, "Search: %q\n", st.query)
	}

	if len(st.labs) == 0 {
		fmt.Fprintln(w, "No laboratories found.")
	}
	for i, lab := range st.labs {
		fmt.Fprintf(w, "%2d. %-32s %-24s %d/%d  %s\n",
			i+1, lab.Name, lab.Location, lab.CurrentMembers, lab.Capacity, labStatus(lab))
	}

	if st.lastJoin != nil {
		renderRecommendations(w, st.lastJoin)
	}
	fmt.Fprintln(w, "Commands: labs [search], join <n>, leave <n>, logout")
}

func labStatus(lab gateway.Laboratory) string {
	switch {
	case lab.IsJoined:
		return "joined"
	case lab.AvailableSpots() == 0:
		return "full"
	default:
		return fmt.Sprintf("%d spots left", lab.AvailableSpots())
	}
}

func renderRecommendations(w io.Writer, result *gateway.JoinResult) {
	rec := result.Recommendations
	fmt.Fprintf(w, "-- Recommendations for %s --\n", result.Laboratory.Name)
	if rec.MonitorAdvice != "" {
		fmt.Fprintf(w, "* %s\n", rec.MonitorAdvice)
	}
	if rec.FreezerAdvice != "" {
		fmt.Fprintf(w, "* %s\n", rec.FreezerAdvice)
	}
	fmt.Fprintf(w, "Estimated yearly energy usage: %.1f kWh\n", rec.YearlyEnergyUsage)
	fmt.Fprintf(w, "Estimated yearly emissions: %.1f kgCO2e\n", rec.YearlyEmissions)
}

func (a *App) renderFAQ(w io.Writer) {
	st := a.faq
	fmt.Fprintln(w, "== Frequently Asked Questions ==")

	categories := faq.Categories(st.items)
	labels := make([]string, len(categories))
	for i, c := range categories {
		if c == st.category {
			labels[i] = "[" + c + "]"
		} else {
			labels[i] = c
		}
	}
	fmt.Fprintf(w, "Categories: %s\n", strings.Join(labels, " "))
	if st.query != "" {
		fmt.Fprintf(w, "Search: %q\n", st.query)
	}

	items := faq.Filter(st.items, st.query, st.category)
	if len(items) == 0 {
		fmt.Fprintln(w, "No questions match your search.")
	}
	for _, item := range items {
		marker := "+"
		if st.expanded.Has(item.ID) {
			marker = "-"
		}
		fmt.Fprintf(w, "%s [%s] %s (%s)\n", marker, item.ID, item.Question, item.Category)
		if st.expanded.Has(item.ID) {
			fmt.Fprintf(w, "    %s\n", item.Answer)
		}
	}
	fmt.Fprintln(w, "Commands: faq [search], faq -c <category>, expand <id>, back")
}

func displayName(id *model.Identity) string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	return id.Email
}
