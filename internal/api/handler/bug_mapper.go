package handler

import (
	"strings"

	"github.com/99minutos/bug-tracker/internal/core/domain"
	"github.com/99minutos/bug-tracker/internal/core/ports"
)

// --- Request → Service input ---

func toCreateInput(req createBugRequest) ports.CreateBugInput {
	return ports.CreateBugInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.BugStatus(req.Status),
		Priority:    domain.BugPriority(req.Priority),
		Project:     req.Project,
		Steps:       req.Steps,
		AssignedTo:  strings.TrimSpace(req.AssignedTo.Value),
	}
}

func toPatch(req updateBugRequest) ports.BugPatch {
	p := ports.BugPatch{
		Title:       req.Title,
		Description: req.Description,
		Project:     req.Project,
		Steps:       req.Steps,
	}
	if req.Status != nil {
		s := domain.BugStatus(*req.Status)
		p.Status = &s
	}
	if req.Priority != nil {
		pr := domain.BugPriority(*req.Priority)
		p.Priority = &pr
	}
	if req.AssignedTo.Set {
		a := strings.TrimSpace(req.AssignedTo.Value)
		p.AssignedTo = &a
	}
	return p
}

func toFilter(q listBugsQuery) ports.BugFilter {
	return ports.BugFilter{
		Status:     domain.BugStatus(q.Status),
		Priority:   domain.BugPriority(q.Priority),
		Project:    strings.TrimSpace(q.Project),
		ReportedBy: strings.TrimSpace(q.ReportedBy),
		AssignedTo: strings.TrimSpace(q.AssignedTo),
	}
}

// --- Service result → HTTP response ---

func toBugResponse(b *domain.Bug) bugResponse {
	resp := bugResponse{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		Status:      string(b.Status),
		Priority:    string(b.Priority),
		Project:     b.Project,
		Steps:       b.Steps,
		ReportedBy:  b.ReportedBy,
		CreatedAt:   b.CreatedAt.UTC(),
		UpdatedAt:   b.UpdatedAt.UTC(),
	}
	if b.AssignedTo != nil {
		ref := *b.AssignedTo
		resp.AssignedTo = &ref
	}
	return resp
}

func toBugResponses(bugs []*domain.Bug) []bugResponse {
	out := make([]bugResponse, 0, len(bugs))
	for _, b := range bugs {
		out = append(out, toBugResponse(b))
	}
	return out
}
