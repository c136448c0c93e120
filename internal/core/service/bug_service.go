package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/bug-tracker/internal/core/domain"
	"github.com/99minutos/bug-tracker/internal/core/ports"
)

// BugService applies the bug mutation policy on top of the bug repository.
type BugService struct {
	bugs   ports.BugRepository
	users  ports.UserRepository
	authz  ports.BugAuthorizer
	logger zerolog.Logger
	now    func() time.Time
}

func NewBugService(bugs ports.BugRepository, users ports.UserRepository, authz ports.BugAuthorizer, logger zerolog.Logger) *BugService {
	return &BugService{
		bugs:   bugs,
		users:  users,
		authz:  authz,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateBug persists a new bug reported by actor. Any reporter supplied by the
// caller is irrelevant: the input type has no such field.
func (s *BugService) CreateBug(ctx context.Context, actor domain.Actor, in ports.CreateBugInput) (*domain.Bug, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthenticated
	}

	b := &domain.Bug{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		Project:     in.Project,
		Steps:       in.Steps,
		ReportedBy:  domain.UserRef{ID: actor.ID},
	}
	if b.Status == "" {
		b.Status = domain.DefaultStatus
	}
	if b.Priority == "" {
		b.Priority = domain.DefaultPriority
	}
	b.Normalize()
	if err := b.Validate(); err != nil {
		return nil, err
	}

	if assignee := strings.TrimSpace(in.AssignedTo); assignee != "" {
		ref, err := s.resolveAssignee(ctx, assignee)
		if err != nil {
			return nil, err
		}
		b.AssignedTo = ref
	}

	now := s.now()
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := s.bugs.Create(ctx, b); err != nil {
		s.logger.Error().Err(err).Str("reported_by", actor.ID).Msg("failed to create bug")
		return nil, err
	}

	s.logger.Info().Str("bug_id", b.ID).Str("reported_by", actor.ID).Str("priority", string(b.Priority)).Msg("bug created")
	return s.reload(ctx, b), nil
}

func (s *BugService) GetBug(ctx context.Context, id string) (*domain.Bug, error) {
	return s.bugs.FindByID(ctx, id)
}

// ListBugs returns every bug matching filter, newest first. Reads are not
// restricted by ownership.
func (s *BugService) ListBugs(ctx context.Context, actor domain.Actor, filter ports.BugFilter) ([]*domain.Bug, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.Validation("status must be one of: open in-progress resolved closed")
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, domain.Validation("priority must be one of: low medium high critical")
	}

	bugs, err := s.bugs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("actor", actor.ID).Int("count", len(bugs)).Msg("bugs listed")
	return bugs, nil
}

// UpdateBug merges patch into the stored bug. Only fields present in the patch
// change; the merged bug is validated as a whole before the single write.
func (s *BugService) UpdateBug(ctx context.Context, id string, actor domain.Actor, patch ports.BugPatch) (*domain.Bug, error) {
	current, err := s.bugs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, ports.ActionUpdate, actor, current, "Not authorized to update this bug"); err != nil {
		return nil, err
	}

	merged, err := s.merge(ctx, *current, patch)
	if err != nil {
		return nil, err
	}
	merged.UpdatedAt = s.now()

	if err := s.bugs.Update(ctx, &merged); err != nil {
		s.logger.Error().Err(err).Str("bug_id", current.ID).Msg("failed to update bug")
		return nil, err
	}

	s.logger.Info().Str("bug_id", merged.ID).Str("actor", actor.ID).Str("status", string(merged.Status)).Msg("bug updated")
	return s.reload(ctx, &merged), nil
}

// DeleteBug removes the bug permanently and returns its id.
func (s *BugService) DeleteBug(ctx context.Context, id string, actor domain.Actor) (string, error) {
	current, err := s.bugs.FindByID(ctx, id)
	if err != nil {
		return "", err
	}

	if err := s.authorize(ctx, ports.ActionDelete, actor, current, "Not authorized to delete this bug"); err != nil {
		return "", err
	}

	if err := s.bugs.Delete(ctx, current.ID); err != nil {
		s.logger.Error().Err(err).Str("bug_id", current.ID).Msg("failed to delete bug")
		return "", err
	}

	s.logger.Info().Str("bug_id", current.ID).Str("actor", actor.ID).Msg("bug deleted")
	return current.ID, nil
}

func (s *BugService) authorize(ctx context.Context, action ports.Action, actor domain.Actor, bug *domain.Bug, denied string) error {
	ok, err := s.authz.Allowed(ctx, action, actor, bug)
	if err != nil {
		return fmt.Errorf("authorize %s: %w", action, err)
	}
	if !ok {
		s.logger.Warn().Str("bug_id", bug.ID).Str("actor", actor.ID).Str("action", string(action)).Msg("bug mutation denied")
		return domain.Forbidden(denied)
	}
	return nil
}

// merge applies the present patch fields onto b. The reporter and creation
// time are carried over from the stored bug untouched.
func (s *BugService) merge(ctx context.Context, b domain.Bug, p ports.BugPatch) (domain.Bug, error) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Priority != nil {
		b.Priority = *p.Priority
	}
	if p.Project != nil {
		b.Project = *p.Project
	}
	if p.Steps != nil {
		b.Steps = *p.Steps
	}

	b.Normalize()
	if err := b.Validate(); err != nil {
		return domain.Bug{}, err
	}

	if p.AssignedTo != nil {
		assignee := strings.TrimSpace(*p.AssignedTo)
		if assignee == "" {
			b.AssignedTo = nil
		} else {
			ref, err := s.resolveAssignee(ctx, assignee)
			if err != nil {
				return domain.Bug{}, err
			}
			b.AssignedTo = ref
		}
	}
	return b, nil
}

func (s *BugService) resolveAssignee(ctx context.Context, userID string) (*domain.UserRef, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.Validation("Assigned user not found")
		}
		return nil, err
	}
	return &domain.UserRef{ID: u.ID, Name: u.Name}, nil
}

// reload re-reads b so references carry display names. The write already
// succeeded, so a failed read falls back to the bug as written.
func (s *BugService) reload(ctx context.Context, b *domain.Bug) *domain.Bug {
	fresh, err := s.bugs.FindByID(ctx, b.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("bug_id", b.ID).Msg("reload after write failed")
		return b
	}
	return fresh
}
