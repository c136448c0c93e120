package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// BugStatus represents the lifecycle state of a bug.
type BugStatus string

const (
	StatusOpen       BugStatus = "open"
	StatusInProgress BugStatus = "in-progress"
	StatusResolved   BugStatus = "resolved"
	StatusClosed     BugStatus = "closed"
)

// BugPriority ranks how urgently a bug needs attention.
type BugPriority string

const (
	PriorityLow      BugPriority = "low"
	PriorityMedium   BugPriority = "medium"
	PriorityHigh     BugPriority = "high"
	PriorityCritical BugPriority = "critical"
)

const (
	DefaultStatus   = StatusOpen
	DefaultPriority = PriorityMedium

	MaxTitleLength = 100
)

// Statuses lists every valid status in display order.
var Statuses = []BugStatus{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}

// Priorities lists every valid priority from lowest to highest.
var Priorities = []BugPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Valid reports whether s is a known status. Any status may follow any other.
func (s BugStatus) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Valid reports whether p is a known priority.
func (p BugPriority) Valid() bool {
	for _, v := range Priorities {
		if v == p {
			return true
		}
	}
	return false
}

// UserRef is a resolved reference to a user, carrying only what the client displays.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Bug is the core aggregate root.
type Bug struct {
	ID          string
	Title       string
	Description string
	Status      BugStatus
	Priority    BugPriority
	Project     string
	Steps       string
	ReportedBy  UserRef  // set once at creation
	AssignedTo  *UserRef // optional
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the invariants every persisted bug must satisfy.
func (b *Bug) Validate() error {
	switch {
	case b.Title == "" || b.Description == "":
		return Validation("Please add title and description fields")
	case utf8.RuneCountInString(b.Title) > MaxTitleLength:
		return Validation("Title cannot be more than 100 characters")
	case b.Project == "":
		return Validation("Please specify the project")
	case !b.Status.Valid():
		return Validation("status must be one of: open in-progress resolved closed")
	case !b.Priority.Valid():
		return Validation("priority must be one of: low medium high critical")
	case b.ReportedBy.ID == "":
		return Validation("reporter is required")
	}
	return nil
}

// Normalize trims the free-text fields the same way they are stored.
func (b *Bug) Normalize() {
	b.Title = strings.TrimSpace(b.Title)
	b.Description = strings.TrimSpace(b.Description)
	b.Project = strings.TrimSpace(b.Project)
	b.Steps = strings.TrimSpace(b.Steps)
}
