// Command bugctl is a terminal client for the bug tracker API.
//
// Each command maps to a client route (/bugs, /bugs/:id, /dashboard, ...)
// and is guarded like one: without a valid session the route is recorded
// and "bugctl login" resumes it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/pflag"

	"github.com/99minutos/bug-tracker/internal/client/api"
	"github.com/99minutos/bug-tracker/internal/client/auth"
	"github.com/99minutos/bug-tracker/internal/client/guard"
	"github.com/99minutos/bug-tracker/internal/client/session"
	"github.com/99minutos/bug-tracker/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], streams{in: os.Stdin, out: os.Stdout, err: os.Stderr}, envconfig.OsLookuper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "bugctl: %v\n", err)
		os.Exit(1)
	}
}

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

type app struct {
	cfg    *config
	store  *session.Store
	mgr    *auth.Manager
	client *api.Client
	guard  *guard.Guard
	out    printer
	stdin  io.Reader
	log    zerolog.Logger
}

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":     {"Log in and resume the last guarded command", runLogin},
	"register":  {"Create an account and log in", runRegister},
	"logout":    {"Forget the stored session", runLogout},
	"whoami":    {"Show the stored user", runWhoami},
	"profile":   {"Show or update your profile", runProfile},
	"dashboard": {"Overview of all bugs", runDashboard},
	"bugs":      {"List, show, create, update and delete bugs", runBugs},
}

func run(ctx context.Context, args []string, std streams, env envconfig.Lookuper) error {
	cfg, err := loadConfig(ctx, env)
	if err != nil {
		return err
	}

	fs := pflag.NewFlagSet("bugctl", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(std.err)
	cfg.bindFlags(fs)
	fs.Usage = func() { usage(std.err, fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		usage(std.err, fs)
		return errors.New("command required")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q; run 'bugctl --help' for usage", rest[0])
	}

	log := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: true, Output: std.err, Service: "bugctl"})

	store := session.NewStore(session.NewFileStorage(cfg.StateFile))
	mgr, client := auth.NewWithClient(store, cfg.APIURL, log,
		api.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	mgr.Bootstrap()
	defer mgr.Wait()

	a := &app{
		cfg:    cfg,
		store:  store,
		mgr:    mgr,
		client: client,
		guard:  guard.New(mgr, store),
		out:    printer{w: std.out, format: cfg.Output},
		stdin:  std.in,
		log:    log,
	}
	return cmd.run(ctx, a, rest[1:])
}

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: bugctl [global flags] <command> [flags] [args]")
	fmt.Fprintln(w, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "\nGlobal flags:")
	fmt.Fprint(w, fs.FlagUsages())
}

// enter runs the route guard for path.
func (a *app) enter(path string) error {
	d, err := a.guard.Enter(path)
	if err != nil {
		return fmt.Errorf("recording return location: %w", err)
	}
	switch d.Outcome {
	case guard.Redirect:
		return fmt.Errorf("login required: run 'bugctl login' to continue to %s", d.From)
	case guard.Checking:
		return errors.New("session is still being checked")
	}
	return nil
}

// guarded runs fn behind the guard for path. When the server rejects the
// session mid-command, the guard runs again so the location is recorded.
func (a *app) guarded(path string, fn func() error) error {
	if err := a.enter(path); err != nil {
		return err
	}
	err := fn()
	if api.KindOf(err) == api.KindUnauthenticated {
		a.log.Debug().Str("route", path).Msg("session rejected by server")
		if rerr := a.enter(path); rerr != nil {
			return fmt.Errorf("%v: %w", err, rerr)
		}
	}
	return err
}

// userError carries a message meant for the terminal along with its cause.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.err }

func inline(msg string, err error) error {
	if err == nil {
		return nil
	}
	if strings.TrimSpace(msg) == "" {
		return err
	}
	return &userError{msg: msg, err: err}
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}
