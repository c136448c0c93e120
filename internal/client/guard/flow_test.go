package guard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/99minutos/bug-tracker/internal/client/api"
	"github.com/99minutos/bug-tracker/internal/client/auth"
	"github.com/99minutos/bug-tracker/internal/client/session"
)

func newFakeServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}

	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/users/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": token,
			"user":  map[string]string{"id": "u1", "name": "Alice", "email": "alice@example.com", "role": "user"},
		})
	})
	mux.HandleFunc("/users/register", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/bugs", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"Not authorized, no token"}`)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFlow_AnonymousBugsResumesAfterLogin(t *testing.T) {
	srv, _ := newFakeServer(t)
	ctx := context.Background()

	store := session.NewStore(session.NewMemoryStorage())
	// An unexpired token the server no longer accepts.
	revoked, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("rotated-key"))
	_ = store.Save(session.Session{Token: revoked, User: session.User{ID: "u1"}})

	mgr, client := auth.NewWithClient(store, srv.URL, zerolog.Nop())
	mgr.Bootstrap()
	if mgr.Snapshot().State != auth.Authenticated {
		t.Fatalf("unexpired token should bootstrap as signed in, got %v", mgr.Snapshot().State)
	}
	g := New(mgr, store)

	if d, _ := g.Enter("/bugs"); d.Outcome != Render {
		t.Fatalf("first render: %+v", d)
	}
	_, err := client.ListBugs(ctx, api.BugFilter{})
	if api.KindOf(err) != api.KindUnauthenticated {
		t.Fatalf("expected 401, got %v", err)
	}
	if mgr.Snapshot().State != auth.Anonymous {
		t.Fatalf("401 should clear the session, state = %v", mgr.Snapshot().State)
	}

	d, err := g.Enter("/bugs")
	if err != nil {
		t.Fatal(err)
	}
	want := Decision{Outcome: Redirect, To: LoginPath, From: "/bugs", Replace: true}
	if d != want {
		t.Fatalf("got %+v, want %+v", d, want)
	}

	if _, err := mgr.Login(ctx, auth.LoginInput{Email: "alice@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	target := g.ReturnTarget()
	if target != "/bugs" {
		t.Fatalf("resume target = %q", target)
	}
	if d, _ := g.Enter(target); d.Outcome != Render {
		t.Fatalf("after login: %+v", d)
	}
	if bugs, err := client.ListBugs(ctx, api.BugFilter{}); err != nil || len(bugs) != 0 {
		t.Fatalf("list after login: %v, %v", bugs, err)
	}
}

func TestFlow_MismatchedPasswordsNeverReachNetwork(t *testing.T) {
	srv, hits := newFakeServer(t)
	store := session.NewStore(session.NewMemoryStorage())
	mgr, _ := auth.NewWithClient(store, srv.URL, zerolog.Nop())
	mgr.Bootstrap()

	_, err := mgr.Register(context.Background(), auth.RegisterInput{
		Name: "Bob", Email: "bob@example.com", Password: "secret1", ConfirmPassword: "secret2",
	})
	if err == nil || err.Error() != "Passwords do not match" {
		t.Fatalf("got %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 0 {
		t.Errorf("server hit %d times", n)
	}

	_, err = mgr.Register(context.Background(), auth.RegisterInput{
		Name: "Bob", Email: "bob@example.com", Password: "secret1", ConfirmPassword: "secret1",
	})
	if err == nil || err.Error() != "Registration failed. Please try again." {
		t.Fatalf("server failure: got %v", err)
	}
}
