package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/99minutos/bug-tracker/internal/client/api"
	"github.com/99minutos/bug-tracker/internal/client/auth"
	"github.com/99minutos/bug-tracker/internal/client/bugs"
	"github.com/99minutos/bug-tracker/internal/client/guard"
)

func parse(fs *pflag.FlagSet, args []string) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%s: %w", fs.Name(), err)
	}
	return fs.Args(), nil
}

func exactArgs(name string, args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("usage: bugctl %s %s", name, usage)
	}
	return nil
}

// readLines reads up to n lines from stdin, for passwords not given as flags.
func (a *app) readLines(n int) []string {
	sc := bufio.NewScanner(a.stdin)
	out := make([]string, 0, n)
	for len(out) < n && sc.Scan() {
		out = append(out, strings.TrimRight(sc.Text(), "\r"))
	}
	for len(out) < n {
		out = append(out, "")
	}
	return out
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (read from stdin when omitted)")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	if err := a.enter(guard.LoginPath); err != nil {
		return err
	}
	if *password == "" {
		*password = a.readLines(1)[0]
	}

	u, err := a.mgr.Login(ctx, auth.LoginInput{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	if err := a.out.message("Logged in as %s", u.Name); err != nil {
		return err
	}
	return a.resume(ctx, a.guard.ReturnTarget())
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (read from stdin when omitted)")
	confirm := fs.String("confirm-password", "", "password again (read from stdin when omitted)")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	if err := a.enter(guard.RegisterPath); err != nil {
		return err
	}
	if *password == "" {
		lines := a.readLines(2)
		*password, *confirm = lines[0], lines[1]
	}

	u, err := a.mgr.Register(ctx, auth.RegisterInput{
		Name: *name, Email: *email, Password: *password, ConfirmPassword: *confirm,
	})
	if err != nil {
		return err
	}
	if err := a.out.message("Registered and logged in as %s", u.Name); err != nil {
		return err
	}
	return a.resume(ctx, a.guard.ReturnTarget())
}

func runLogout(_ context.Context, a *app, args []string) error {
	if _, err := parse(newFlagSet("logout"), args); err != nil {
		return err
	}
	a.mgr.Logout()
	return a.out.message("Logged out")
}

func runWhoami(_ context.Context, a *app, args []string) error {
	if _, err := parse(newFlagSet("whoami"), args); err != nil {
		return err
	}
	u := a.mgr.CurrentUser()
	if u == nil {
		return errors.New("not logged in")
	}
	return a.out.sessionUser(u)
}

func runProfile(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("profile")
	name := fs.String("name", "", "new display name")
	email := fs.String("email", "", "new email")
	current := fs.String("current-password", "", "current password, required to change it")
	next := fs.String("new-password", "", "new password")
	confirm := fs.String("confirm-password", "", "new password again")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	changing := false
	fs.Visit(func(*pflag.Flag) { changing = true })
	if !changing {
		return a.showProfile(ctx)
	}

	return a.guarded("/profile", func() error {
		profile, err := a.client.Profile(ctx)
		if err != nil {
			return inline(api.UserMessage(err, "Failed to load profile. Please refresh the page."), err)
		}
		in := auth.ProfileInput{
			Name:            profile.Name,
			Email:           profile.Email,
			CurrentPassword: *current,
			NewPassword:     *next,
			ConfirmPassword: *confirm,
		}
		if fs.Changed("name") {
			in.Name = *name
		}
		if fs.Changed("email") {
			in.Email = *email
		}
		if _, err := a.mgr.UpdateProfile(ctx, in); err != nil {
			return err
		}
		return a.out.message("Profile updated successfully.")
	})
}

func (a *app) showProfile(ctx context.Context) error {
	return a.guarded("/profile", func() error {
		u, err := a.client.Profile(ctx)
		if err != nil {
			return inline(api.UserMessage(err, "Failed to load profile. Please refresh the page."), err)
		}
		return a.out.apiUser(u)
	})
}

func runDashboard(ctx context.Context, a *app, args []string) error {
	if _, err := parse(newFlagSet("dashboard"), args); err != nil {
		return err
	}
	return a.dashboard(ctx)
}

func (a *app) dashboard(ctx context.Context) error {
	return a.guarded("/dashboard", func() error {
		list := bugs.NewList(a.client)
		defer list.Close()
		if err := list.Load(ctx); err != nil {
			return inline(list.Err(), err)
		}
		var userID, name string
		if snap := a.mgr.Snapshot(); snap.User != nil {
			userID, name = snap.User.ID, snap.User.Name
		}
		return a.out.summary(bugs.Summarize(list.All(), userID), name)
	})
}

// resume continues to a route recorded by the guard.
func (a *app) resume(ctx context.Context, target string) error {
	r, params, ok := guard.Match(target)
	if !ok {
		return nil
	}
	switch r.Pattern {
	case "/dashboard":
		return a.dashboard(ctx)
	case "/bugs":
		return a.listBugs(ctx, bugs.FilterAll)
	case "/bugs/:id":
		return a.showBug(ctx, params["id"])
	case "/profile":
		return a.showProfile(ctx)
	case "/bugs/new":
		return a.out.message("Continue with: bugctl bugs create")
	case "/bugs/edit/:id":
		return a.out.message("Continue with: bugctl bugs update %s", params["id"])
	}
	return nil
}
