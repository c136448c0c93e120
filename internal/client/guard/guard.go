// Package guard decides, per navigation, whether a client route renders or
// sends the user to the login page first.
package guard

import (
	"strings"

	"github.com/99minutos/bug-tracker/internal/client/auth"
	"github.com/99minutos/bug-tracker/internal/client/session"
)

const (
	LoginPath     = "/login"
	RegisterPath  = "/register"
	DefaultReturn = "/dashboard"
)

type Outcome int

const (
	// Checking means the session is not settled yet; show a loading state.
	Checking Outcome = iota
	Render
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	default:
		return "checking"
	}
}

// Decision is the result of guarding one navigation. To, From and Replace are
// set only for Redirect.
type Decision struct {
	Outcome Outcome
	To      string
	From    string
	Replace bool
}

type Route struct {
	Pattern   string
	Protected bool
}

// Routes are matched in order; literal segments come before parameters.
var Routes = []Route{
	{Pattern: LoginPath},
	{Pattern: RegisterPath},
	{Pattern: "/dashboard", Protected: true},
	{Pattern: "/profile", Protected: true},
	{Pattern: "/bugs", Protected: true},
	{Pattern: "/bugs/new", Protected: true},
	{Pattern: "/bugs/edit/:id", Protected: true},
	{Pattern: "/bugs/:id", Protected: true},
}

// reserved holds the literal segments that sit beside a parameter in another
// route. A parameter never takes one of these values, so /bugs/edit is not
// the detail page of a bug called "edit".
var reserved = map[string]struct{}{
	"new":  {},
	"edit": {},
}

// Match finds the route for path and returns its parameters.
func Match(path string) (Route, map[string]string, bool) {
	segs := split(path)
	for _, r := range Routes {
		if params, ok := matchPattern(split(r.Pattern), segs); ok {
			return r, params, true
		}
	}
	return Route{}, nil, false
}

// Decide guards path for a manager in state. Unknown paths and public routes
// always render.
func Decide(state auth.State, path string) Decision {
	r, _, ok := Match(path)
	if !ok || !r.Protected {
		return Decision{Outcome: Render}
	}
	switch state {
	case auth.Authenticated:
		return Decision{Outcome: Render}
	case auth.Anonymous:
		return Decision{Outcome: Redirect, To: LoginPath, From: path, Replace: true}
	default:
		return Decision{Outcome: Checking}
	}
}

// Guard applies Decide against a live manager and remembers where a
// redirected user wanted to go.
type Guard struct {
	manager *auth.Manager
	store   *session.Store
}

func New(manager *auth.Manager, store *session.Store) *Guard {
	return &Guard{manager: manager, store: store}
}

func (g *Guard) Enter(path string) (Decision, error) {
	d := Decide(g.manager.Snapshot().State, path)
	if d.Outcome == Redirect {
		if err := g.store.SetReturnTo(d.From); err != nil {
			return d, err
		}
	}
	return d, nil
}

// ReturnTarget consumes the recorded location, defaulting to the dashboard.
func (g *Guard) ReturnTarget() string {
	path, err := g.store.TakeReturnTo()
	if err != nil || path == "" || path == LoginPath || path == RegisterPath {
		return DefaultReturn
	}
	return path
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func matchPattern(pattern, segs []string) (map[string]string, bool) {
	if len(pattern) != len(segs) {
		return nil, false
	}
	params := map[string]string{}
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			if _, ok := reserved[segs[i]]; ok || segs[i] == "" {
				return nil, false
			}
			params[p[1:]] = segs[i]
			continue
		}
		if p != segs[i] {
			return nil, false
		}
	}
	return params, true
}
