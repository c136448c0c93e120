package guard

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/99minutos/bug-tracker/internal/client/auth"
	"github.com/99minutos/bug-tracker/internal/client/session"
)

func TestDecide(t *testing.T) {
	cases := []struct {
		name  string
		state auth.State
		path  string
		want  Decision
	}{
		{"checking while unknown", auth.Unknown, "/bugs", Decision{Outcome: Checking}},
		{"render when signed in", auth.Authenticated, "/bugs/42", Decision{Outcome: Render}},
		{"redirect anonymous", auth.Anonymous, "/bugs", Decision{Outcome: Redirect, To: LoginPath, From: "/bugs", Replace: true}},
		{"redirect keeps full path", auth.Anonymous, "/bugs/edit/7", Decision{Outcome: Redirect, To: LoginPath, From: "/bugs/edit/7", Replace: true}},
		{"public login", auth.Anonymous, "/login", Decision{Outcome: Render}},
		{"public register while unknown", auth.Unknown, "/register", Decision{Outcome: Render}},
		{"unknown route", auth.Anonymous, "/nowhere", Decision{Outcome: Render}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decide(tc.state, tc.path); got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		path    string
		pattern string
		id      string
	}{
		{"/bugs", "/bugs", ""},
		{"/bugs/new", "/bugs/new", ""},
		{"/bugs/abc123", "/bugs/:id", "abc123"},
		{"/bugs/edit/abc123", "/bugs/edit/:id", "abc123"},
		{"/dashboard/", "/dashboard", ""},
		{"/bugs?status=open", "/bugs", ""},
	}
	for _, tc := range cases {
		r, params, ok := Match(tc.path)
		if !ok || r.Pattern != tc.pattern || params["id"] != tc.id {
			t.Errorf("Match(%q) = %+v %v %v", tc.path, r, params, ok)
		}
	}
	for _, path := range []string{"/bugs/edit", "/bugs/edit/", "/bugs/edit/new", "/bugs/new/extra"} {
		if r, params, ok := Match(path); ok {
			t.Errorf("Match(%q) = %+v %v, want no match", path, r, params)
		}
	}
	if d := Decide(auth.Anonymous, "/bugs/edit"); d.Outcome != Render {
		t.Errorf("unknown path should render the not-found view, got %v", d.Outcome)
	}
}

func TestGuard_RecordsAndConsumesReturnTarget(t *testing.T) {
	store := session.NewStore(session.NewMemoryStorage())
	mgr := auth.NewManager(store, nil, zerolog.Nop())
	mgr.Bootstrap()
	g := New(mgr, store)

	if target := g.ReturnTarget(); target != DefaultReturn {
		t.Fatalf("default target = %q", target)
	}

	d, err := g.Enter("/bugs/99")
	if err != nil || d.Outcome != Redirect {
		t.Fatalf("got %+v, %v", d, err)
	}
	if target := g.ReturnTarget(); target != "/bugs/99" {
		t.Errorf("target = %q", target)
	}
	if target := g.ReturnTarget(); target != DefaultReturn {
		t.Errorf("target must be consumed, got %q", target)
	}
}
