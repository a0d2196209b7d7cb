//file: internal/match/validator.go
package match

import (
	"fmt"

	"desk-rule-matcher/internal/store"
)

var stringVerbs = []Verb{VerbIs, VerbIsNot, VerbContains, VerbDoesNotContain, VerbStartsWith, VerbEndsWith}
var enumVerbs = []Verb{VerbIs, VerbIsNot}
var numericVerbs = []Verb{VerbIs, VerbIsNot, VerbLessThan, VerbGreaterThan}
var elapsedVerbs = []Verb{VerbIs, VerbLessThan, VerbGreaterThan}
var windowVerbs = []Verb{VerbDuring, VerbNotDuring, VerbAnyTime}
var commentVerbs = []Verb{VerbContains, VerbDoesNotContain, VerbContainsAnyOf, VerbContainsAllOf, VerbContainsNoneOf}
var tagVerbs = []Verb{VerbContainsAnyOf, VerbContainsAllOf, VerbContainsNoneOf}

// ticketFieldVerbs is the validation-time union for custom field
// conditions; the per-type restriction needs the field declaration and
// is enforced by the finder at compile time.
var ticketFieldVerbs = []Verb{VerbIs, VerbIsNot, VerbContains, VerbLessThan, VerbGreaterThan,
	VerbContainsAnyOf, VerbContainsAllOf, VerbContainsNoneOf}

// coreTicketFields maps core ticket fields to their allowed verbs
var coreTicketFields = map[string][]Verb{
	"subject":                stringVerbs,
	"description":            stringVerbs,
	"subject_or_description": {VerbContains, VerbDoesNotContain},
	"status":                 enumVerbs,
	"source":                 enumVerbs,
	"priority":               numericVerbs,
	"agent":                  enumVerbs, // empty value means unassigned
	"group":                  enumVerbs,
	"requester.email":        stringVerbs,
	"requester.name":         stringVerbs,
	"requester.language":     enumVerbs,
	"requester.time_zone":    enumVerbs,
	"agent.email":            stringVerbs,
	"agent.name":             stringVerbs,
	"agent.available_for_desk": {VerbIs},
}

// coreUserFields maps core user fields to their allowed verbs
var coreUserFields = map[string][]Verb{
	"name":               stringVerbs,
	"email":              stringVerbs,
	"language":           enumVerbs,
	"time_zone":          enumVerbs,
	"available_for_desk": {VerbIs},
}

// elapsedTimestampFields are the named timestamp fields of the
// time-elapsed finder. Only "created" applies to users.
var elapsedTimestampFields = map[string]bool{
	"created":                          true,
	"assigned_at":                      true,
	"last_assigned_at":                 true,
	"last_requester_updated_at":        true,
	"updated_at_by_agent_or_requester": true,
}

// ValidateRule performs upfront validation of a rule. Any error it
// returns is a configuration defect that should block saving the rule.
func ValidateRule(r *Rule) error {
	if r == nil {
		return &ConfigurationError{Field: "rule", Message: "rule cannot be nil"}
	}
	if r.TenantID == "" {
		return &ConfigurationError{Field: "tenantId", Message: "tenant is required"}
	}

	switch r.EntityType {
	case store.EntityTicket, store.EntityUser:
	default:
		return &ConfigurationError{
			Field:   "entityType",
			Message: fmt.Sprintf("invalid entity type: %s", r.EntityType),
		}
	}

	for gi := range r.Groups {
		group := &r.Groups[gi]
		if err := validateJoin(group.JoinWith); err != nil {
			return &ConfigurationError{
				Field:   fmt.Sprintf("groups[%d].joinWith", gi),
				Message: err.Error(),
			}
		}
		for ci := range group.Conditions {
			if err := ValidateCondition(&group.Conditions[ci], r.EntityType); err != nil {
				return &ConfigurationError{
					Field:   fmt.Sprintf("groups[%d].conditions[%d]", gi, ci),
					Message: err.Error(),
				}
			}
		}
	}

	return nil
}

// ValidateCondition validates a single condition for an entity
// universe and caches its parsed field path.
func ValidateCondition(cond *Condition, entityType store.EntityType) error {
	if cond.Kind != KindTags && cond.Field == "" {
		return fmt.Errorf("field is required")
	}
	if err := validateJoin(cond.JoinType); err != nil {
		return err
	}

	verbs, ok := legalVerbs(cond, entityType)
	if !ok {
		return fmt.Errorf("unknown %s field: %s", cond.Kind, cond.Field)
	}
	if !verbAllowed(verbs, cond.Verb) {
		return &UnsupportedVerbError{Kind: cond.Kind, Field: cond.Field, Verb: cond.Verb}
	}

	if cond.Kind == KindTags && len(cond.TagIDs) == 0 {
		return fmt.Errorf("tag conditions require at least one tag id")
	}
	if cond.Value == "" && valueRequired(cond) {
		return fmt.Errorf("value is required for verb %s", cond.Verb)
	}

	cond.path = parseFieldPath(cond.Field)
	return nil
}

// legalVerbs returns the allowed-verb set for a (kind, field, entity
// type) combination. The second return is false when the combination
// is not recognized at all.
func legalVerbs(cond *Condition, entityType store.EntityType) ([]Verb, bool) {
	switch cond.Kind {
	case KindTags:
		return tagVerbs, true

	case KindTicketField:
		if entityType != store.EntityTicket {
			return nil, false
		}
		return ticketFieldVerbs, true

	case KindTimeBased:
		if isWindowVerb(cond.Verb) {
			// Business-hour window over the creation instant
			if cond.Field != "created" && cond.Field != "created_at" {
				return nil, false
			}
			return windowVerbs, true
		}
		if isStateHoursField(cond.Field) {
			if entityType != store.EntityTicket {
				return nil, false
			}
			return elapsedVerbs, true
		}
		if elapsedTimestampFields[cond.Field] {
			if entityType == store.EntityUser && cond.Field != "created" {
				return nil, false
			}
			return elapsedVerbs, true
		}
		return nil, false

	case KindCore:
		if scope, ok := commentScopeOf(cond.Field); ok {
			if entityType != store.EntityTicket || scope == "" {
				return nil, false
			}
			return commentVerbs, true
		}
		if entityType == store.EntityUser {
			verbs, ok := coreUserFields[cond.Field]
			return verbs, ok
		}
		verbs, ok := coreTicketFields[cond.Field]
		return verbs, ok
	}

	return nil, false
}

func validateJoin(join JoinType) error {
	switch join {
	case "", JoinAnd, JoinOr:
		return nil
	default:
		return fmt.Errorf("invalid join operator: %s", join)
	}
}

func verbAllowed(verbs []Verb, verb Verb) bool {
	for _, v := range verbs {
		if v == verb {
			return true
		}
	}
	return false
}

func isWindowVerb(verb Verb) bool {
	return verb == VerbDuring || verb == VerbNotDuring || verb == VerbAnyTime
}

// valueRequired reports whether an empty value is a configuration
// defect. any_time is unconditional; is/is_not with an empty value
// means "unassigned" for nullable relations; tag conditions carry
// their operands in TagIDs.
func valueRequired(cond *Condition) bool {
	switch {
	case cond.Kind == KindTags:
		return false
	case cond.Verb == VerbAnyTime:
		return false
	case (cond.Verb == VerbIs || cond.Verb == VerbIsNot) && nullableField(cond.Field):
		return false
	}
	return true
}

// nullableField lists core relations where emptiness is a meaningful
// comparison target ("unassigned").
func nullableField(field string) bool {
	return field == "agent" || field == "group"
}
