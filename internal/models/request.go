package models

import (
	"encoding/json"
	"time"
)

// RequestType identifies the kind of work a request tracks.
type RequestType string

const (
	RequestTypeEmail    RequestType = "email"
	RequestTypeDatabase RequestType = "database"
	RequestTypeLinkedin RequestType = "linkedin"
)

// RequestStatus is the legacy, simple status encoding. It is kept write-synced
// with WorkflowStatus for older consumers; WorkflowStatus is authoritative.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusInProgress RequestStatus = "inprogress"
	StatusCompleted  RequestStatus = "completed"
)

// WorkflowStatus is the authoritative lifecycle state of a request.
type WorkflowStatus string

const (
	WorkflowPendingAssignment WorkflowStatus = "pending_assignment"
	WorkflowInProgress        WorkflowStatus = "in_progress"
	WorkflowCompleted         WorkflowStatus = "completed"
	WorkflowCanceled          WorkflowStatus = "canceled"
)

// IsActive reports whether the workflow status still counts as open work.
func (s WorkflowStatus) IsActive() bool {
	return s != WorkflowCompleted && s != WorkflowCanceled
}

// LegacyStatus maps a workflow status onto the legacy status column.
func (s WorkflowStatus) LegacyStatus() RequestStatus {
	switch s {
	case WorkflowInProgress:
		return StatusInProgress
	case WorkflowCompleted:
		return StatusCompleted
	default:
		return StatusPending
	}
}

// RequestRecord is the raw persisted row. Details may arrive as a JSON string
// or as a nested object depending on which client wrote it; the normalizer
// resolves it into a typed RequestDetails.
type RequestRecord struct {
	ID             string          `db:"id" json:"id"`
	Title          string          `db:"title" json:"title"`
	Type           RequestType     `db:"type" json:"type"`
	Status         RequestStatus   `db:"status" json:"status"`
	WorkflowStatus WorkflowStatus  `db:"workflow_status" json:"workflow_status"`
	CreatedBy      string          `db:"created_by" json:"created_by"`
	AssignedTo     *string         `db:"assigned_to" json:"assigned_to,omitempty"`
	TargetRole     UserRole        `db:"target_role" json:"target_role"`
	MissionID      *string         `db:"mission_id" json:"mission_id,omitempty"`
	MissionName    *string         `db:"mission_name" json:"mission_name,omitempty"`
	DueDate        time.Time       `db:"due_date" json:"due_date"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	LastUpdated    time.Time       `db:"last_updated" json:"last_updated"`
	Details        json.RawMessage `db:"details" json:"details,omitempty"`
}

// Request is the normalized in-memory entity with derived fields populated.
type Request struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Type           RequestType    `json:"type"`
	Status         RequestStatus  `json:"status"`
	WorkflowStatus WorkflowStatus `json:"workflow_status"`
	CreatedBy      string         `json:"created_by"`
	CreatedByName  string         `json:"created_by_name,omitempty"`
	AssignedTo     string         `json:"assigned_to,omitempty"`
	AssignedToName string         `json:"assigned_to_name,omitempty"`
	TargetRole     UserRole       `json:"target_role"`
	MissionID      string         `json:"mission_id,omitempty"`
	MissionName    string         `json:"mission_name"`
	DueDate        time.Time      `json:"due_date"`
	CreatedAt      time.Time      `json:"created_at"`
	LastUpdated    time.Time      `json:"last_updated"`
	IsLate         bool           `json:"is_late"`
	Details        RequestDetails `json:"details"`

	// DetailsCorrupted marks rows whose details blob failed to parse and was
	// replaced with an empty structure. Surfaced on admin views only.
	DetailsCorrupted bool `json:"details_corrupted,omitempty"`
}

// Unassigned reports whether the request has no assignee. An empty string is
// treated the same as a missing value.
func (r *Request) Unassigned() bool {
	return r.AssignedTo == ""
}

// RequestDetails is the type-tagged payload variant. Exactly one of the
// sub-structures is relevant for a given request type; the normalizer
// guarantees that sub-structure is shaped (never nil fields) so consumers
// skip null checks.
type RequestDetails struct {
	Email    *EmailDetails    `json:"email,omitempty"`
	Database *DatabaseDetails `json:"database,omitempty"`
	Linkedin *LinkedinDetails `json:"linkedin,omitempty"`
}

// EmailDetails holds campaign-specific payload for email requests.
type EmailDetails struct {
	Template  EmailTemplate  `json:"template"`
	Database  EmailDatabase  `json:"database"`
	Blacklist EmailBlacklist `json:"blacklist"`
}

// EmailTemplate describes the campaign template sources.
type EmailTemplate struct {
	Subject  string `json:"subject"`
	Content  string `json:"content"`
	WebLink  string `json:"web_link"`
	FileURL  string `json:"file_url"`
	SenderID string `json:"sender_id"`
}

// EmailDatabase describes the recipient database sources.
type EmailDatabase struct {
	Notes   string `json:"notes"`
	FileURL string `json:"file_url"`
	WebLink string `json:"web_link"`
}

// EmailBlacklist groups account and email exclusions.
type EmailBlacklist struct {
	Accounts BlacklistSection `json:"accounts"`
	Emails   BlacklistSection `json:"emails"`
}

// BlacklistSection is one exclusion list source.
type BlacklistSection struct {
	Notes   string `json:"notes"`
	FileURL string `json:"file_url"`
}

// DatabaseDetails holds payload for database build requests.
type DatabaseDetails struct {
	Targeting       TargetingDetails `json:"targeting"`
	Blacklist       EmailBlacklist   `json:"blacklist"`
	ContactsCreated int              `json:"contacts_created"`
}

// LinkedinDetails holds payload for LinkedIn scraping requests.
type LinkedinDetails struct {
	Targeting       TargetingDetails `json:"targeting"`
	ProfilesScraped int              `json:"profiles_scraped"`
}

// TargetingDetails describes audience targeting criteria.
type TargetingDetails struct {
	JobTitles  []string `json:"job_titles"`
	Industries []string `json:"industries"`
	Locations  []string `json:"locations"`
	Companies  []string `json:"companies"`
	Notes      string   `json:"notes"`
}

// RequestFilter narrows down persisted requests at the query level. Role and
// view scoping happen in memory in the filter engine; this only bounds the
// fetched population.
type RequestFilter struct {
	Types      []RequestType
	MissionID  string
	CreatedBy  string
	AssignedTo string
	Since      *time.Time
}
