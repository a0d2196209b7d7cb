//file: internal/match/types.go

// Package match compiles condition trees into predicates and evaluates
// them against the tenant's tickets or users. The same compiled
// predicates back both the bulk form (all matching entity ids) and the
// per-entity form (does this entity match).
package match

import (
	"fmt"
	"strings"
	"time"

	"desk-rule-matcher/internal/store"
)

// Kind selects which finder compiles a condition
type Kind string

const (
	KindCore        Kind = "core"
	KindTimeBased   Kind = "time_based"
	KindTicketField Kind = "ticket_field"
	KindTags        Kind = "tags"
)

// JoinType combines a condition or group with what precedes it
type JoinType string

const (
	JoinAnd JoinType = "and"
	JoinOr  JoinType = "or"
)

// Verb is the comparison a condition applies
type Verb string

const (
	VerbIs             Verb = "is"
	VerbIsNot          Verb = "is_not"
	VerbContains       Verb = "contains"
	VerbDoesNotContain Verb = "does_not_contain"
	VerbStartsWith     Verb = "starts_with"
	VerbEndsWith       Verb = "ends_with"
	VerbLessThan       Verb = "less_than"
	VerbGreaterThan    Verb = "greater_than"
	VerbDuring         Verb = "during"
	VerbNotDuring      Verb = "not_during"
	VerbAnyTime        Verb = "any_time"
	VerbContainsAnyOf  Verb = "contains_any_of"
	VerbContainsAllOf  Verb = "contains_all_of"
	VerbContainsNoneOf Verb = "contains_none_of"
)

// TermDelimiter separates multiple terms in a condition value for the
// *_of verbs, e.g. "refund||working".
const TermDelimiter = "||"

// Condition is a single field/verb/value test
type Condition struct {
	Kind     Kind     `json:"kind"`
	Field    string   `json:"field"`
	Verb     Verb     `json:"verb"`
	Value    string   `json:"value,omitempty"`
	TagIDs   []string `json:"tagIds,omitempty"`
	JoinType JoinType `json:"joinType,omitempty"` // vs prior siblings; ignored on the first condition

	// path caches the parsed field path. Populated once during
	// validation so evaluation never re-parses the field string.
	path *fieldPath
}

// ConditionGroup is an ordered list of conditions plus the operator
// that combines the group with the accumulated result of prior groups.
// JoinWith is ignored on the first group.
type ConditionGroup struct {
	JoinWith   JoinType    `json:"joinWith,omitempty"`
	Conditions []Condition `json:"conditions"`
}

// Rule is the unit the engine evaluates: ordered condition groups
// scoped to one tenant and one entity universe. Event and Priority are
// trigger metadata interpreted by the automation side; the engine only
// reads Groups, EntityType and TenantID.
type Rule struct {
	ID          string           `json:"id"`
	TenantID    string           `json:"tenantId"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	EntityType  store.EntityType `json:"entityType"`
	Event       string           `json:"event,omitempty"`
	Priority    int              `json:"priority"`
	Enabled     bool             `json:"enabled"`
	Groups      []ConditionGroup `json:"groups"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Scope binds an evaluation to one tenant and one entity universe.
// Always passed explicitly; there is no ambient tenant.
type Scope struct {
	TenantID   string
	EntityType store.EntityType
}

// Entity is one member of the scoped universe
type Entity struct {
	Type   store.EntityType
	Ticket *store.Ticket
	User   *store.User
}

// ID returns the entity identifier
func (e *Entity) ID() string {
	switch e.Type {
	case store.EntityTicket:
		return e.Ticket.ID
	case store.EntityUser:
		return e.User.ID
	}
	return ""
}

// IDSet is an unordered set of entity identifiers
type IDSet map[string]struct{}

// Contains reports set membership
func (s IDSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// fieldPath is a parsed dotted field: relation hops plus the terminal
// attribute, e.g. "requester.email" -> hops [requester], attr "email".
type fieldPath struct {
	hops []string
	attr string
}

func parseFieldPath(field string) *fieldPath {
	segments := strings.Split(field, ".")
	return &fieldPath{
		hops: segments[:len(segments)-1],
		attr: segments[len(segments)-1],
	}
}

// fieldPathOf returns the cached parsed path, parsing on first use for
// conditions that skipped validation.
func (c *Condition) fieldPathOf() *fieldPath {
	if c.path == nil {
		c.path = parseFieldPath(c.Field)
	}
	return c.path
}

// ConfigurationError reports a condition that is syntactically invalid
// (missing field, verb or value where required). Raised at validation
// time; blocks rule save.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UnsupportedVerbError reports a verb that is not legal for the
// condition's (kind, field) pair. Validation-time callers reject it;
// bulk matching degrades the condition to "matches nothing".
type UnsupportedVerbError struct {
	Kind  Kind
	Field string
	Verb  Verb
}

// Error implements the error interface
func (e *UnsupportedVerbError) Error() string {
	return fmt.Sprintf("verb %q is not supported for %s field %q", e.Verb, e.Kind, e.Field)
}

// splitTerms splits a delimited term list, dropping empty entries
func splitTerms(value string) []string {
	parts := strings.Split(value, TermDelimiter)
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			terms = append(terms, p)
		}
	}
	return terms
}

// containsFold is a case-insensitive unanchored substring test
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
