package bugs

import (
	"math"
	"sort"

	"github.com/99minutos/bug-tracker/internal/client/api"
)

const recentLimit = 5

// Summary is the dashboard overview of a set of bugs. ResolutionRate is the
// rounded percentage of bugs resolved or closed.
type Summary struct {
	Total          int            `json:"total"          yaml:"total"`
	ByStatus       map[string]int `json:"byStatus"       yaml:"byStatus"`
	HighPriority   int            `json:"highPriority"   yaml:"highPriority"`
	ReportedByMe   int            `json:"reportedByMe"   yaml:"reportedByMe"`
	ResolutionRate int            `json:"resolutionRate" yaml:"resolutionRate"`
	Recent         []api.Bug      `json:"recent"         yaml:"recent"`
}

// Share returns the rounded percentage of bugs in status.
func (s Summary) Share(status string) int {
	return percent(s.ByStatus[status], s.Total)
}

// Summarize computes the dashboard figures for userID.
func Summarize(bugs []api.Bug, userID string) Summary {
	s := Summary{Total: len(bugs), ByStatus: make(map[string]int, len(Statuses))}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
	}

	for _, b := range bugs {
		s.ByStatus[b.Status]++
		if b.Priority == "high" || b.Priority == "critical" {
			s.HighPriority++
		}
		if userID != "" && b.ReportedBy.ID == userID {
			s.ReportedByMe++
		}
	}
	s.ResolutionRate = percent(s.ByStatus["resolved"]+s.ByStatus["closed"], s.Total)

	recent := append([]api.Bug(nil), bugs...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	s.Recent = recent
	return s
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) * 100 / float64(total)))
}
