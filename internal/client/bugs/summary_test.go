package bugs

import (
	"testing"
	"time"

	"github.com/99minutos/bug-tracker/internal/client/api"
)

func TestSummarize(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id, status, priority, reporter string, day int) api.Bug {
		return api.Bug{ID: id, Status: status, Priority: priority,
			ReportedBy: api.UserRef{ID: reporter}, CreatedAt: base.AddDate(0, 0, day)}
	}
	bugs := []api.Bug{
		mk("b1", "open", "high", "u1", 1),
		mk("b2", "open", "low", "u2", 2),
		mk("b3", "in-progress", "critical", "u1", 3),
		mk("b4", "resolved", "medium", "u2", 4),
		mk("b5", "closed", "medium", "u1", 5),
		mk("b6", "resolved", "high", "u2", 6),
	}

	s := Summarize(bugs, "u1")
	if s.Total != 6 || s.ByStatus["open"] != 2 || s.ByStatus["in-progress"] != 1 || s.ByStatus["resolved"] != 2 || s.ByStatus["closed"] != 1 {
		t.Errorf("counts = %+v", s)
	}
	if s.HighPriority != 3 {
		t.Errorf("high priority = %d", s.HighPriority)
	}
	if s.ReportedByMe != 3 {
		t.Errorf("mine = %d", s.ReportedByMe)
	}
	if s.ResolutionRate != 50 {
		t.Errorf("resolution rate = %d", s.ResolutionRate)
	}
	if s.Share("open") != 33 {
		t.Errorf("open share = %d", s.Share("open"))
	}
	if got := ids(s.Recent); !equal(got, []string{"b6", "b5", "b4", "b3", "b2"}) {
		t.Errorf("recent = %v", got)
	}
	if bugs[0].ID != "b1" {
		t.Error("input must not be reordered")
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, "u1")
	if s.Total != 0 || s.ResolutionRate != 0 || s.Share("open") != 0 || len(s.Recent) != 0 {
		t.Errorf("got %+v", s)
	}
}
