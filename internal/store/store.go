//file: internal/store/store.go
package store

// Store is the read-only data access surface the matching engine
// depends on. Every method is scoped to a tenant; implementations must
// never return rows belonging to another tenant.
//
// Lookup methods return (nil, nil) when the identified row does not
// exist — the engine treats dangling references as "matches nothing"
// rather than an error.
type Store interface {
	// Tickets returns every ticket in the tenant
	Tickets(tenantID string) ([]Ticket, error)

	// Ticket returns one ticket, or nil when absent
	Ticket(tenantID, ticketID string) (*Ticket, error)

	// Users returns every user in the tenant
	Users(tenantID string) ([]User, error)

	// User returns one user, or nil when absent
	User(tenantID, userID string) (*User, error)

	// TagsFor returns the tag ids attached to an entity
	TagsFor(tenantID string, entityType EntityType, entityID string) ([]string, error)

	// CommentsFor returns a ticket's comments in chronological order
	CommentsFor(tenantID, ticketID string) ([]Comment, error)

	// TicketField returns a custom field declaration, or nil when absent
	TicketField(tenantID, fieldID string) (*TicketField, error)

	// FieldResponse returns the stored custom field value for an
	// entity, or nil when the entity has no response for the field
	FieldResponse(tenantID, fieldID, entityID string) (*FieldResponse, error)

	// TransitionsFor returns a ticket's status transitions in
	// chronological order
	TransitionsFor(tenantID, ticketID string) ([]StatusTransition, error)

	// Schedule returns a business-hour schedule, or nil when absent
	Schedule(tenantID, scheduleID string) (*BusinessSchedule, error)
}
