package handler

import (
	"encoding/json"
	"time"

	"github.com/99minutos/bug-tracker/internal/core/domain"
)

// --- Request types ---

// readOnlyFields are keys a client may echo back from a previous response.
// They are accepted so strict decoding does not reject them, then ignored.
type readOnlyFields struct {
	ID         json.RawMessage `json:"id,omitempty"         swaggerignore:"true"`
	ReportedBy json.RawMessage `json:"reportedBy,omitempty" swaggerignore:"true"`
	CreatedAt  json.RawMessage `json:"createdAt,omitempty"  swaggerignore:"true"`
	UpdatedAt  json.RawMessage `json:"updatedAt,omitempty"  swaggerignore:"true"`
}

// optionalString tells an absent key apart from an explicit null or "".
type optionalString struct {
	Set   bool
	Value string
}

func (o *optionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

type createBugRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      string         `json:"status"     validate:"omitempty,oneof=open in-progress resolved closed"`
	Priority    string         `json:"priority"   validate:"omitempty,oneof=low medium high critical"`
	Project     string         `json:"project"`
	Steps       string         `json:"steps"`
	AssignedTo  optionalString `json:"assignedTo" swaggertype:"string"`
	readOnlyFields
}

// updateBugRequest carries a partial update; nil pointers are absent keys.
// "assignedTo": null or "" unassigns.
type updateBugRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Status      *string        `json:"status"     validate:"omitempty,oneof=open in-progress resolved closed"`
	Priority    *string        `json:"priority"   validate:"omitempty,oneof=low medium high critical"`
	Project     *string        `json:"project"`
	Steps       *string        `json:"steps"`
	AssignedTo  optionalString `json:"assignedTo" swaggertype:"string"`
	readOnlyFields
}

type listBugsQuery struct {
	Status     string `query:"status"     validate:"omitempty,oneof=open in-progress resolved closed"`
	Priority   string `query:"priority"   validate:"omitempty,oneof=low medium high critical"`
	Project    string `query:"project"`
	ReportedBy string `query:"reportedBy"`
	AssignedTo string `query:"assignedTo"`
}

// --- Response types ---

type bugResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Priority    string          `json:"priority"`
	Project     string          `json:"project"`
	Steps       string          `json:"steps"`
	ReportedBy  domain.UserRef  `json:"reportedBy"`
	AssignedTo  *domain.UserRef `json:"assignedTo"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type deleteBugResponse struct {
	ID string `json:"id"`
}
