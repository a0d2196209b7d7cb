//file: internal/store/memory.go
package store

import (
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and the
// single-binary demo mode. Writes exist only to seed data; the
// matching engine itself never mutates the store.
type MemoryStore struct {
	mu          sync.RWMutex
	tickets     map[string]map[string]Ticket // tenant -> id -> ticket
	users       map[string]map[string]User
	tags        map[string]map[string][]string // tenant -> entityKey -> tag ids
	comments    map[string]map[string][]Comment
	fields      map[string]map[string]TicketField
	responses   map[string]map[string]FieldResponse // tenant -> fieldID/entityID -> response
	transitions map[string]map[string][]StatusTransition
	schedules   map[string]map[string]BusinessSchedule
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:     make(map[string]map[string]Ticket),
		users:       make(map[string]map[string]User),
		tags:        make(map[string]map[string][]string),
		comments:    make(map[string]map[string][]Comment),
		fields:      make(map[string]map[string]TicketField),
		responses:   make(map[string]map[string]FieldResponse),
		transitions: make(map[string]map[string][]StatusTransition),
		schedules:   make(map[string]map[string]BusinessSchedule),
	}
}

func entityKey(entityType EntityType, entityID string) string {
	return string(entityType) + "/" + entityID
}

func responseKey(fieldID, entityID string) string {
	return fieldID + "/" + entityID
}

// AddTicket seeds a ticket
func (s *MemoryStore) AddTicket(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tickets[t.TenantID] == nil {
		s.tickets[t.TenantID] = make(map[string]Ticket)
	}
	s.tickets[t.TenantID][t.ID] = t
}

// AddUser seeds a user
func (s *MemoryStore) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users[u.TenantID] == nil {
		s.users[u.TenantID] = make(map[string]User)
	}
	s.users[u.TenantID][u.ID] = u
}

// SetTags seeds the tag set of an entity
func (s *MemoryStore) SetTags(tenantID string, entityType EntityType, entityID string, tagIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tags[tenantID] == nil {
		s.tags[tenantID] = make(map[string][]string)
	}
	s.tags[tenantID][entityKey(entityType, entityID)] = append([]string(nil), tagIDs...)
}

// AddComment seeds a comment
func (s *MemoryStore) AddComment(c Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.comments[c.TenantID] == nil {
		s.comments[c.TenantID] = make(map[string][]Comment)
	}
	s.comments[c.TenantID][c.TicketID] = append(s.comments[c.TenantID][c.TicketID], c)
}

// AddTicketField seeds a custom field declaration
func (s *MemoryStore) AddTicketField(f TicketField) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fields[f.TenantID] == nil {
		s.fields[f.TenantID] = make(map[string]TicketField)
	}
	s.fields[f.TenantID][f.ID] = f
}

// AddFieldResponse seeds a custom field value
func (s *MemoryStore) AddFieldResponse(r FieldResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.responses[r.TenantID] == nil {
		s.responses[r.TenantID] = make(map[string]FieldResponse)
	}
	s.responses[r.TenantID][responseKey(r.FieldID, r.EntityID)] = r
}

// AddTransition seeds a status transition
func (s *MemoryStore) AddTransition(tr StatusTransition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transitions[tr.TenantID] == nil {
		s.transitions[tr.TenantID] = make(map[string][]StatusTransition)
	}
	s.transitions[tr.TenantID][tr.TicketID] = append(s.transitions[tr.TenantID][tr.TicketID], tr)
}

// AddSchedule seeds a business-hour schedule
func (s *MemoryStore) AddSchedule(sch BusinessSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedules[sch.TenantID] == nil {
		s.schedules[sch.TenantID] = make(map[string]BusinessSchedule)
	}
	s.schedules[sch.TenantID][sch.ID] = sch
}

// Tickets implements Store
func (s *MemoryStore) Tickets(tenantID string) ([]Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tickets := make([]Ticket, 0, len(s.tickets[tenantID]))
	for _, t := range s.tickets[tenantID] {
		tickets = append(tickets, t)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets, nil
}

// Ticket implements Store
func (s *MemoryStore) Ticket(tenantID, ticketID string) (*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[tenantID][ticketID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// Users implements Store
func (s *MemoryStore) Users(tenantID string) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]User, 0, len(s.users[tenantID]))
	for _, u := range s.users[tenantID] {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// User implements Store
func (s *MemoryStore) User(tenantID, userID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[tenantID][userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// TagsFor implements Store
func (s *MemoryStore) TagsFor(tenantID string, entityType EntityType, entityID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tags := s.tags[tenantID][entityKey(entityType, entityID)]
	return append([]string(nil), tags...), nil
}

// CommentsFor implements Store
func (s *MemoryStore) CommentsFor(tenantID, ticketID string) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comments := append([]Comment(nil), s.comments[tenantID][ticketID]...)
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

// TicketField implements Store
func (s *MemoryStore) TicketField(tenantID, fieldID string) (*TicketField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.fields[tenantID][fieldID]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// FieldResponse implements Store
func (s *MemoryStore) FieldResponse(tenantID, fieldID, entityID string) (*FieldResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.responses[tenantID][responseKey(fieldID, entityID)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// TransitionsFor implements Store
func (s *MemoryStore) TransitionsFor(tenantID, ticketID string) ([]StatusTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transitions := append([]StatusTransition(nil), s.transitions[tenantID][ticketID]...)
	sort.Slice(transitions, func(i, j int) bool { return transitions[i].At.Before(transitions[j].At) })
	return transitions, nil
}

// Schedule implements Store
func (s *MemoryStore) Schedule(tenantID, scheduleID string) (*BusinessSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sch, ok := s.schedules[tenantID][scheduleID]
	if !ok {
		return nil, nil
	}
	return &sch, nil
}
