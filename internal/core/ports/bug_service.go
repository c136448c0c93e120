package ports

import (
	"context"

	"github.com/99minutos/bug-tracker/internal/core/domain"
)

// CreateBugInput carries the caller-settable fields of a new bug.
// Empty Status/Priority fall back to the domain defaults.
type CreateBugInput struct {
	Title       string
	Description string
	Status      domain.BugStatus
	Priority    domain.BugPriority
	Project     string
	Steps       string
	AssignedTo  string
}

// BugPatch is a partial update. A nil field is left untouched.
// AssignedTo set to "" removes the assignee.
type BugPatch struct {
	Title       *string
	Description *string
	Status      *domain.BugStatus
	Priority    *domain.BugPriority
	Project     *string
	Steps       *string
	AssignedTo  *string
}

// Empty reports whether the patch carries no field at all.
func (p BugPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.Project == nil && p.Steps == nil && p.AssignedTo == nil
}

// Action names a bug mutation subject to authorization.
type Action string

const (
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// BugAuthorizer decides whether an actor may mutate a bug.
type BugAuthorizer interface {
	Allowed(ctx context.Context, action Action, actor domain.Actor, bug *domain.Bug) (bool, error)
}

// BugService defines use-case operations for bugs.
type BugService interface {
	CreateBug(ctx context.Context, actor domain.Actor, in CreateBugInput) (*domain.Bug, error)
	GetBug(ctx context.Context, id string) (*domain.Bug, error)
	ListBugs(ctx context.Context, actor domain.Actor, filter BugFilter) ([]*domain.Bug, error)
	UpdateBug(ctx context.Context, id string, actor domain.Actor, patch BugPatch) (*domain.Bug, error)
	DeleteBug(ctx context.Context, id string, actor domain.Actor) (string, error)
}
