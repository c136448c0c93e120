// Package policy evaluates the bug mutation rule with Open Policy Agent.
//
// The rule lives in authz.rego and is compiled once; every Allowed call is a
// single evaluation of the prepared query against the request input.
package policy

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/99minutos/bug-tracker/internal/core/domain"
	"github.com/99minutos/bug-tracker/internal/core/ports"
)

//go:embed authz.rego
var defaultPolicy string

const allowQuery = "data.bugtracker.authz.allow"

// RegoAuthorizer implements ports.BugAuthorizer on a prepared Rego query.
type RegoAuthorizer struct {
	query rego.PreparedEvalQuery
}

// NewRegoAuthorizer compiles the built-in bug mutation policy.
func NewRegoAuthorizer(ctx context.Context) (*RegoAuthorizer, error) {
	return NewRegoAuthorizerFromSource(ctx, defaultPolicy)
}

// NewRegoAuthorizerFromSource compiles a custom policy. The module must
// define data.bugtracker.authz.allow.
func NewRegoAuthorizerFromSource(ctx context.Context, src string) (*RegoAuthorizer, error) {
	pq, err := rego.New(
		rego.Query(allowQuery),
		rego.Module("authz.rego", src),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	return &RegoAuthorizer{query: pq}, nil
}

// Allowed reports whether actor may perform action on bug. An evaluation
// failure is returned as an error and never treated as permission.
func (a *RegoAuthorizer) Allowed(ctx context.Context, action ports.Action, actor domain.Actor, bug *domain.Bug) (bool, error) {
	if bug == nil {
		return false, errors.New("policy: nil bug")
	}
	rs, err := a.query.Eval(ctx, rego.EvalInput(buildInput(action, actor, bug)))
	if err != nil {
		return false, fmt.Errorf("evaluate policy: %w", err)
	}
	return rs.Allowed(), nil
}

// HealthCheck evaluates the prepared query against a known-allowed input.
func (a *RegoAuthorizer) HealthCheck(ctx context.Context) error {
	ok, err := a.Allowed(ctx, ports.ActionUpdate,
		domain.Actor{ID: "health", Role: domain.RoleAdmin},
		&domain.Bug{ID: "health", ReportedBy: domain.UserRef{ID: "someone"}})
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("policy denied admin health probe")
	}
	return nil
}

func buildInput(action ports.Action, actor domain.Actor, bug *domain.Bug) map[string]interface{} {
	return map[string]interface{}{
		"action": string(action),
		"actor": map[string]interface{}{
			"id":   actor.ID,
			"role": actor.Role,
		},
		"bug": map[string]interface{}{
			"id":          bug.ID,
			"reported_by": bug.ReportedBy.ID,
		},
	}
}
