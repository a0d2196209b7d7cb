//file: internal/store/postgres.go
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// PostgresStore implements Store over a PostgreSQL database via lib/pq.
// All queries are tenant-filtered; the engine issues only reads.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig holds the connection parameters
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// NewPostgresStore opens and pings a PostgreSQL connection
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}

	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const ticketColumns = `id, tenant_id, subject, description, status, priority, source,
	requester_id, COALESCE(agent_id, ''), COALESCE(group_id, ''),
	created_at, updated_at, assigned_at, last_assigned_at,
	last_requester_updated_at, updated_by_agent_or_requester_at`

func scanTicket(row interface{ Scan(...interface{}) error }) (Ticket, error) {
	var t Ticket
	var assignedAt, lastAssignedAt, lastRequesterUpdatedAt, updatedByAt sql.NullTime

	err := row.Scan(&t.ID, &t.TenantID, &t.Subject, &t.Description, &t.Status,
		&t.Priority, &t.Source, &t.RequesterID, &t.AgentID, &t.GroupID,
		&t.CreatedAt, &t.UpdatedAt, &assignedAt, &lastAssignedAt,
		&lastRequesterUpdatedAt, &updatedByAt)
	if err != nil {
		return t, err
	}

	if assignedAt.Valid {
		t.AssignedAt = &assignedAt.Time
	}
	if lastAssignedAt.Valid {
		t.LastAssignedAt = &lastAssignedAt.Time
	}
	if lastRequesterUpdatedAt.Valid {
		t.LastRequesterUpdatedAt = &lastRequesterUpdatedAt.Time
	}
	if updatedByAt.Valid {
		t.UpdatedByAgentOrRequesterAt = &updatedByAt.Time
	}
	return t, nil
}

// Tickets implements Store
func (s *PostgresStore) Tickets(tenantID string) ([]Ticket, error) {
	rows, err := s.db.Query(`SELECT `+ticketColumns+` FROM tickets WHERE tenant_id = $1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tickets")
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan ticket")
		}
		tickets = append(tickets, t)
	}
	return tickets, errors.Wrap(rows.Err(), "failed to iterate tickets")
}

// Ticket implements Store
func (s *PostgresStore) Ticket(tenantID, ticketID string) (*Ticket, error) {
	row := s.db.QueryRow(`SELECT `+ticketColumns+` FROM tickets WHERE tenant_id = $1 AND id = $2`,
		tenantID, ticketID)

	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query ticket")
	}
	return &t, nil
}

const userColumns = `id, tenant_id, name, email, COALESCE(language, ''),
	COALESCE(time_zone, ''), available_for_desk, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.Language,
		&u.TimeZone, &u.AvailableForDesk, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Users implements Store
func (s *PostgresStore) Users(tenantID string) ([]User, error) {
	rows, err := s.db.Query(`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query users")
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan user")
		}
		users = append(users, u)
	}
	return users, errors.Wrap(rows.Err(), "failed to iterate users")
}

// User implements Store
func (s *PostgresStore) User(tenantID, userID string) (*User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND id = $2`,
		tenantID, userID)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query user")
	}
	return &u, nil
}

// TagsFor implements Store
func (s *PostgresStore) TagsFor(tenantID string, entityType EntityType, entityID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT tag_id FROM tag_uses WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3`,
		tenantID, string(entityType), entityID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tags")
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, errors.Wrap(err, "failed to scan tag")
		}
		tags = append(tags, tag)
	}
	return tags, errors.Wrap(rows.Err(), "failed to iterate tags")
}

// CommentsFor implements Store
func (s *PostgresStore) CommentsFor(tenantID, ticketID string) ([]Comment, error) {
	rows, err := s.db.Query(
		`SELECT id, tenant_id, ticket_id, COALESCE(author_id, ''), body, is_description, created_at
		 FROM comments WHERE tenant_id = $1 AND ticket_id = $2 ORDER BY created_at`,
		tenantID, ticketID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query comments")
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.TenantID, &c.TicketID, &c.AuthorID, &c.Body,
			&c.Description, &c.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan comment")
		}
		comments = append(comments, c)
	}
	return comments, errors.Wrap(rows.Err(), "failed to iterate comments")
}

// TicketField implements Store
func (s *PostgresStore) TicketField(tenantID, fieldID string) (*TicketField, error) {
	var f TicketField
	err := s.db.QueryRow(
		`SELECT id, tenant_id, label, field_type FROM ticket_fields WHERE tenant_id = $1 AND id = $2`,
		tenantID, fieldID).Scan(&f.ID, &f.TenantID, &f.Label, &f.Type)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query ticket field")
	}
	return &f, nil
}

// FieldResponse implements Store
func (s *PostgresStore) FieldResponse(tenantID, fieldID, entityID string) (*FieldResponse, error) {
	var r FieldResponse
	err := s.db.QueryRow(
		`SELECT field_id, tenant_id, entity_id, COALESCE(value, '')
		 FROM field_responses WHERE tenant_id = $1 AND field_id = $2 AND entity_id = $3`,
		tenantID, fieldID, entityID).Scan(&r.FieldID, &r.TenantID, &r.EntityID, &r.Value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query field response")
	}

	rows, err := s.db.Query(
		`SELECT option_id FROM field_response_options
		 WHERE tenant_id = $1 AND field_id = $2 AND entity_id = $3`,
		tenantID, fieldID, entityID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query field response options")
	}
	defer rows.Close()

	for rows.Next() {
		var optionID string
		if err := rows.Scan(&optionID); err != nil {
			return nil, errors.Wrap(err, "failed to scan field response option")
		}
		r.OptionIDs = append(r.OptionIDs, optionID)
	}
	return &r, errors.Wrap(rows.Err(), "failed to iterate field response options")
}

// TransitionsFor implements Store
func (s *PostgresStore) TransitionsFor(tenantID, ticketID string) ([]StatusTransition, error) {
	rows, err := s.db.Query(
		`SELECT tenant_id, ticket_id, from_status, to_status, at
		 FROM status_transitions WHERE tenant_id = $1 AND ticket_id = $2 ORDER BY at`,
		tenantID, ticketID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query status transitions")
	}
	defer rows.Close()

	var transitions []StatusTransition
	for rows.Next() {
		var tr StatusTransition
		if err := rows.Scan(&tr.TenantID, &tr.TicketID, &tr.FromStatus, &tr.ToStatus, &tr.At); err != nil {
			return nil, errors.Wrap(err, "failed to scan status transition")
		}
		transitions = append(transitions, tr)
	}
	return transitions, errors.Wrap(rows.Err(), "failed to iterate status transitions")
}

// Schedule implements Store
func (s *PostgresStore) Schedule(tenantID, scheduleID string) (*BusinessSchedule, error) {
	var sch BusinessSchedule
	err := s.db.QueryRow(
		`SELECT id, tenant_id, name, time_zone FROM business_schedules WHERE tenant_id = $1 AND id = $2`,
		tenantID, scheduleID).Scan(&sch.ID, &sch.TenantID, &sch.Name, &sch.TimeZone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query business schedule")
	}

	dayRows, err := s.db.Query(
		`SELECT weekday, enabled, start_time, end_time
		 FROM business_schedule_days WHERE tenant_id = $1 AND schedule_id = $2`,
		tenantID, scheduleID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query schedule days")
	}
	defer dayRows.Close()

	for dayRows.Next() {
		var weekday int
		var day DayWindow
		if err := dayRows.Scan(&weekday, &day.Enabled, &day.Start, &day.End); err != nil {
			return nil, errors.Wrap(err, "failed to scan schedule day")
		}
		if weekday >= 0 && weekday < 7 {
			sch.Days[weekday] = day
		}
	}
	if err := dayRows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate schedule days")
	}

	holidayRows, err := s.db.Query(
		`SELECT holiday_date FROM business_schedule_holidays WHERE tenant_id = $1 AND schedule_id = $2`,
		tenantID, scheduleID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query schedule holidays")
	}
	defer holidayRows.Close()

	for holidayRows.Next() {
		var date string
		if err := holidayRows.Scan(&date); err != nil {
			return nil, errors.Wrap(err, "failed to scan schedule holiday")
		}
		sch.Holidays = append(sch.Holidays, date)
	}
	return &sch, errors.Wrap(holidayRows.Err(), "failed to iterate schedule holidays")
}
