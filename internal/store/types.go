//file: internal/store/types.go

// Package store provides read access to the helpdesk data the matching
// engine evaluates conditions against. The engine never writes through
// this package.
package store

import "time"

// EntityType identifies which universe a rule is scoped to
type EntityType string

const (
	EntityTicket EntityType = "ticket"
	EntityUser   EntityType = "user"
)

// Ticket is the denormalized ticket row the core and time-based finders
// read. Pointer timestamps are nil when the event has never happened.
type Ticket struct {
	ID          string
	TenantID    string
	Subject     string
	Description string
	Status      string
	Priority    int
	Source      string
	RequesterID string
	AgentID     string // empty means unassigned
	GroupID     string

	CreatedAt              time.Time
	UpdatedAt              time.Time
	AssignedAt             *time.Time
	LastAssignedAt         *time.Time
	LastRequesterUpdatedAt *time.Time
	// Most recent update made by either the agent or the requester,
	// as opposed to system updates.
	UpdatedByAgentOrRequesterAt *time.Time
}

// User is a requester or agent record
type User struct {
	ID               string
	TenantID         string
	Name             string
	Email            string
	Language         string
	TimeZone         string
	AvailableForDesk bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Comment is a ticket conversation entry. The original description is
// stored as the comment with Description set.
type Comment struct {
	ID          string
	TenantID    string
	TicketID    string
	AuthorID    string
	Body        string
	Description bool
	CreatedAt   time.Time
}

// FieldType is the declared type of a tenant-defined custom field
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldTextarea    FieldType = "textarea"
	FieldDropdown    FieldType = "dropdown"
	FieldMultiSelect FieldType = "multi_select"
	FieldNumber      FieldType = "number"
)

// TicketField is a tenant-defined custom field declaration
type TicketField struct {
	ID       string
	TenantID string
	Label    string
	Type     FieldType
}

// FieldResponse is the stored value of a custom field on one entity.
// Value holds the raw text for text/textarea/number fields; OptionIDs
// holds the selected option identifiers for dropdown/multi_select.
type FieldResponse struct {
	FieldID   string
	TenantID  string
	EntityID  string
	Value     string
	OptionIDs []string
}

// StatusTransition records a ticket moving between states
type StatusTransition struct {
	TenantID   string
	TicketID   string
	FromStatus string
	ToStatus   string
	At         time.Time
}

// DayWindow is one weekday's availability in a business-hour schedule.
// Start and End are local times formatted "15:04"; the window covers
// [Start, End).
type DayWindow struct {
	Enabled bool
	Start   string
	End     string
}

// BusinessSchedule is a named weekly availability window. Days is
// indexed by time.Weekday. Holidays are calendar dates in the schedule
// time zone, formatted "2006-01-02"; a holiday overrides the weekday
// window for that date.
type BusinessSchedule struct {
	ID       string
	TenantID string
	Name     string
	TimeZone string
	Days     [7]DayWindow
	Holidays []string
}
