package guard

import (
	"testing"

	"github.com/hitoshi/labtrack/internal/model"
	"github.com/hitoshi/labtrack/internal/session"
)

var (
	loading       = session.Snapshot{Status: session.StatusLoading}
	anonymous     = session.Snapshot{Status: session.StatusAnonymous}
	authenticated = session.Snapshot{
		Status:   session.StatusAuthenticated,
		Identity: &model.Identity{ID: "1", Email: "a@b.com"},
	}
)

func TestResolve_TransitionTable(t *testing.T) {
	tests := []struct {
		name      string
		snap      session.Snapshot
		requested View
		want      Decision
	}{
		{"loading dashboard", loading, ViewDashboard, Decision{OutcomePending, ViewDashboard}},
		{"loading login", loading, ViewLogin, Decision{OutcomePending, ViewLogin}},
		{"loading root", loading, ViewRoot, Decision{OutcomePending, ViewRoot}},
		{"anonymous dashboard", anonymous, ViewDashboard, Decision{OutcomeRedirect, ViewLogin}},
		{"anonymous login", anonymous, ViewLogin, Decision{OutcomeAllow, ViewLogin}},
		{"anonymous register", anonymous, ViewRegister, Decision{OutcomeAllow, ViewRegister}},
		{"anonymous root", anonymous, ViewRoot, Decision{OutcomeRedirect, ViewLogin}},
		{"authenticated login", authenticated, ViewLogin, Decision{OutcomeRedirect, ViewDashboard}},
		{"authenticated register", authenticated, ViewRegister, Decision{OutcomeRedirect, ViewDashboard}},
		{"authenticated dashboard", authenticated, ViewDashboard, Decision{OutcomeAllow, ViewDashboard}},
		{"authenticated root", authenticated, ViewRoot, Decision{OutcomeRedirect, ViewDashboard}},
		{"anonymous unknown", anonymous, View("/settings"), Decision{OutcomeRedirect, ViewLogin}},
		{"authenticated unknown", authenticated, View("/settings"), Decision{OutcomeRedirect, ViewDashboard}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.snap, tt.requested)
			if got != tt.want {
				t.Errorf("Resolve(%v, %q) = %+v, want %+v", tt.snap.Status, tt.requested, got, tt.want)
			}
		})
	}
}

func TestResolve_PublicViewAllowedUnderAllStatuses(t *testing.T) {
	for _, snap := range []session.Snapshot{loading, anonymous, authenticated} {
		got := Resolve(snap, ViewFAQ)
		want := Decision{Outcome: OutcomeAllow, View: ViewFAQ}
		if got != want {
			t.Errorf("Resolve(%v, faq) = %+v, want %+v", snap.Status, got, want)
		}
	}
}

func TestResolve_AuthenticatedWithoutIdentity_TreatedAsAnonymous(t *testing.T) {
	snap := session.Snapshot{Status: session.StatusAuthenticated}

	got := Resolve(snap, ViewDashboard)
	if got.Outcome != OutcomeRedirect || got.View != ViewLogin {
		t.Errorf("Resolve = %+v, want redirect to login", got)
	}
}

func TestParseView(t *testing.T) {
	tests := []struct {
		in     string
		want   View
		wantOK bool
	}{
		{"", ViewRoot, true},
		{"/", ViewRoot, true},
		{"login", ViewLogin, true},
		{"/register", ViewRegister, true},
		{"Dashboard", ViewDashboard, true},
		{"/faq/", ViewFAQ, true},
		{"settings", View("/settings"), false},
	}

	for _, tt := range tests {
		got, ok := ParseView(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseView(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		view View
		want Access
	}{
		{ViewFAQ, AccessPublic},
		{ViewLogin, AccessEntry},
		{ViewRegister, AccessEntry},
		{ViewDashboard, AccessProtected},
		{ViewRoot, AccessIndex},
		{View("/unknown"), AccessIndex},
	}
	for _, tt := range tests {
		if got := Classify(tt.view); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.view, got, tt.want)
		}
	}
}
