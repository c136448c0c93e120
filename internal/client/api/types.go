package api

import "time"

type User struct {
	ID        string    `json:"id"        yaml:"id"`
	Name      string    `json:"name"      yaml:"name"`
	Email     string    `json:"email"     yaml:"email"`
	Role      string    `json:"role"      yaml:"role"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

type UserRef struct {
	ID   string `json:"id"   yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type Bug struct {
	ID          string    `json:"id"          yaml:"id"`
	Title       string    `json:"title"       yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Status      string    `json:"status"      yaml:"status"`
	Priority    string    `json:"priority"    yaml:"priority"`
	Project     string    `json:"project"     yaml:"project"`
	Steps       string    `json:"steps"       yaml:"steps,omitempty"`
	ReportedBy  UserRef   `json:"reportedBy"  yaml:"reportedBy"`
	AssignedTo  *UserRef  `json:"assignedTo"  yaml:"assignedTo,omitempty"`
	CreatedAt   time.Time `json:"createdAt"   yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"   yaml:"updatedAt"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileUpdate struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	CurrentPassword string `json:"currentPassword,omitempty"`
	NewPassword     string `json:"newPassword,omitempty"`
}

type NewBug struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Project     string `json:"project"`
	Steps       string `json:"steps,omitempty"`
	AssignedTo  string `json:"assignedTo,omitempty"`
}

// BugPatch sends only its non-nil fields. AssignedTo pointing at "" removes
// the assignee.
type BugPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Project     *string `json:"project,omitempty"`
	Steps       *string `json:"steps,omitempty"`
	AssignedTo  *string `json:"assignedTo,omitempty"`
}

type BugFilter struct {
	Status     string
	Priority   string
	Project    string
	ReportedBy string
	AssignedTo string
}
