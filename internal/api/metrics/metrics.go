// Package metrics defines and registers all custom Prometheus metrics for the
// bug tracker API. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/99minutos/bug-tracker/internal/core/domain"
	"github.com/99minutos/bug-tracker/internal/core/ports"
)

const namespace = "bugtracker"

// ── HTTP metrics ──────────────────────────────────────────────────────────────

// HTTPRequestsTotal counts handled requests.
// Labels:
//   - method: HTTP method
//   - route: the matched route pattern (e.g. "/bugs/:id"), never the raw path
//   - status: response status code
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests, by method, route and status.",
	},
	[]string{"method", "route", "status"},
)

// HTTPRequestDuration measures request latency per route.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests, by method and route.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// ── Bug metrics ───────────────────────────────────────────────────────────────

// BugsCreatedTotal counts newly reported bugs.
// Label:
//   - priority: low, medium, high or critical
var BugsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bugs_created_total",
		Help:      "Total number of bugs created, by priority.",
	},
	[]string{"priority"},
)

// BugMutationsTotal counts update and delete attempts.
// Labels:
//   - action: "update" or "delete"
//   - result: "ok", "forbidden", "not_found", "invalid" or "error"
var BugMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bug_mutations_total",
		Help:      "Total number of bug mutations, by action and result.",
	},
	[]string{"action", "result"},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthAttemptsTotal counts register, login and logout calls.
// Labels:
//   - action: "register", "login" or "logout"
//   - result: "ok", "invalid", "rejected" or "error"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of authentication attempts, by action and result.",
	},
	[]string{"action", "result"},
)

// ── Policy metrics ────────────────────────────────────────────────────────────

// PolicyEvalDuration measures a single authorization decision.
// Labels:
//   - action: the evaluated action
//   - decision: "allow", "deny" or "error"
var PolicyEvalDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "policy_eval_duration_seconds",
		Help:      "Duration of bug mutation policy evaluations.",
		Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
	},
	[]string{"action", "decision"},
)

// Result classifies a service error into a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrBugNotFound), errors.Is(err, domain.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUserExists):
		return "rejected"
	default:
		return "error"
	}
}

// Middleware records HTTPRequestsTotal and HTTPRequestDuration.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = 500
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// timedAuthorizer observes PolicyEvalDuration around another authorizer.
type timedAuthorizer struct {
	next ports.BugAuthorizer
}

// InstrumentAuthorizer wraps a with policy evaluation timing.
func InstrumentAuthorizer(a ports.BugAuthorizer) ports.BugAuthorizer {
	return timedAuthorizer{next: a}
}

func (t timedAuthorizer) Allowed(ctx context.Context, action ports.Action, actor domain.Actor, bug *domain.Bug) (bool, error) {
	start := time.Now()
	ok, err := t.next.Allowed(ctx, action, actor, bug)

	decision := "deny"
	switch {
	case err != nil:
		decision = "error"
	case ok:
		decision = "allow"
	}
	PolicyEvalDuration.WithLabelValues(string(action), decision).Observe(time.Since(start).Seconds())
	return ok, err
}
