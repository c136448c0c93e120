package ports

import (
	"context"

	"github.com/99minutos/bug-tracker/internal/core/domain"
)

// BugFilter narrows a bug listing. Empty fields do not filter.
type BugFilter struct {
	Status     domain.BugStatus
	Priority   domain.BugPriority
	Project    string
	ReportedBy string
	AssignedTo string
}

// BugRepository defines persistence operations for bugs. Reads return bugs
// with ReportedBy and AssignedTo resolved to display names.
type BugRepository interface {
	// Create inserts the bug and sets its ID.
	Create(ctx context.Context, b *domain.Bug) error
	FindByID(ctx context.Context, id string) (*domain.Bug, error)
	// List returns matching bugs, newest first.
	List(ctx context.Context, filter BugFilter) ([]*domain.Bug, error)
	// Update writes every mutable field of b in a single document update.
	// ReportedBy and CreatedAt are never written.
	Update(ctx context.Context, b *domain.Bug) error
	Delete(ctx context.Context, id string) error
}
