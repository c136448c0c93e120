package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/bug-tracker/internal/core/domain"
	"github.com/99minutos/bug-tracker/internal/core/ports"
)

func TestResult(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{domain.Forbidden("no"), "forbidden"},
		{domain.ErrBugNotFound, "not_found"},
		{domain.Validation("bad"), "invalid"},
		{domain.ErrInvalidCredentials, "rejected"},
		{errors.New("boom"), "error"},
	}
	for _, tc := range cases {
		if got := Result(tc.err); got != tc.want {
			t.Errorf("Result(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/bugs/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Bug not found")
	})

	e.GET("/metrics", Handler())

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bugs/abc", nil))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	want := `bugtracker_http_requests_total{method="GET",route="/bugs/:id",status="404"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Fatalf("expected %q in exposition", want)
	}
	if strings.Contains(rec.Body.String(), `route="/bugs/abc"`) {
		t.Fatalf("raw path must not be used as a label")
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	BugsCreatedTotal.WithLabelValues("high").Inc()

	e := echo.New()
	e.GET("/metrics", Handler())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bugtracker_bugs_created_total") {
		t.Fatalf("expected bug counter in exposition")
	}
}

type fixedAuthorizer struct {
	ok  bool
	err error
}

func (f fixedAuthorizer) Allowed(context.Context, ports.Action, domain.Actor, *domain.Bug) (bool, error) {
	return f.ok, f.err
}

func TestInstrumentAuthorizer_PassesThrough(t *testing.T) {
	ok, err := InstrumentAuthorizer(fixedAuthorizer{ok: true}).Allowed(context.Background(), ports.ActionUpdate, domain.Actor{}, &domain.Bug{})
	if !ok || err != nil {
		t.Fatalf("expected allow, got %v %v", ok, err)
	}

	boom := errors.New("boom")
	if _, err := InstrumentAuthorizer(fixedAuthorizer{err: boom}).Allowed(context.Background(), ports.ActionDelete, domain.Actor{}, &domain.Bug{}); !errors.Is(err, boom) {
		t.Fatalf("expected error to pass through, got %v", err)
	}
}
