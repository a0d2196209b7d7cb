//file: internal/match/matcher.go
package match

import (
	"fmt"
	"time"

	"desk-rule-matcher/internal/logger"
	"desk-rule-matcher/internal/metrics"
	"desk-rule-matcher/internal/store"
)

// Matcher is the matching service entry point. It exposes the bulk
// form (all matching entity ids for a rule) and the per-entity form
// (does this entity match), both backed by the same compiled
// predicates so their semantics cannot drift apart.
//
// The matcher holds no mutable state: given the same rule, tenant and
// data snapshot it always returns the same result, and concurrent
// evaluations need no locking.
type Matcher struct {
	store    store.Store
	compiler *Compiler
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewMatcher creates a matcher over a store. metrics may be nil.
func NewMatcher(st store.Store, log *logger.Logger, m *metrics.Metrics) *Matcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Matcher{
		store:    st,
		compiler: NewCompiler(st, log),
		log:      log,
		metrics:  m,
	}
}

// MatchingIDs returns the unordered set of entity ids in the rule's
// tenant that satisfy the rule's condition groups. A rule with zero
// groups matches the entire scoped universe. Callers apply their own
// ordering and paging.
func (m *Matcher) MatchingIDs(rule *Rule) (IDSet, error) {
	start := time.Now()
	scope := Scope{TenantID: rule.TenantID, EntityType: rule.EntityType}

	entities, err := m.universe(scope)
	if err != nil {
		m.safeMetrics(func(mm *metrics.Metrics) { mm.IncEvaluationsTotal("error") })
		return nil, err
	}

	set, err := m.evaluateGroups(rule, scope, entities)
	if err != nil {
		m.safeMetrics(func(mm *metrics.Metrics) { mm.IncEvaluationsTotal("error") })
		return nil, err
	}

	m.safeMetrics(func(mm *metrics.Metrics) {
		mm.ObserveEvaluationDuration(time.Since(start).Seconds())
		if len(set) > 0 {
			mm.IncEvaluationsTotal("matched")
			mm.IncRuleMatches()
		} else {
			mm.IncEvaluationsTotal("unmatched")
		}
	})

	m.log.Debug("bulk evaluation completed",
		"rule", rule.ID,
		"tenant", rule.TenantID,
		"entityType", rule.EntityType,
		"universe", len(entities),
		"matched", len(set))

	return set, nil
}

// Matches reports whether one entity satisfies the rule. An entity
// that does not exist in the rule's tenant matches nothing.
func (m *Matcher) Matches(rule *Rule, entityID string) (bool, error) {
	start := time.Now()
	scope := Scope{TenantID: rule.TenantID, EntityType: rule.EntityType}

	entity, err := m.entity(scope, entityID)
	if err != nil {
		m.safeMetrics(func(mm *metrics.Metrics) { mm.IncEvaluationsTotal("error") })
		return false, err
	}
	if entity == nil {
		m.safeMetrics(func(mm *metrics.Metrics) { mm.IncEvaluationsTotal("unmatched") })
		return false, nil
	}

	matched, err := m.entityMatches(rule, scope, entity)
	if err != nil {
		m.safeMetrics(func(mm *metrics.Metrics) { mm.IncEvaluationsTotal("error") })
		return false, err
	}

	m.safeMetrics(func(mm *metrics.Metrics) {
		mm.ObserveEvaluationDuration(time.Since(start).Seconds())
		if matched {
			mm.IncEvaluationsTotal("matched")
			mm.IncRuleMatches()
		} else {
			mm.IncEvaluationsTotal("unmatched")
		}
	})

	return matched, nil
}

// universe loads the tenant's full entity list for the scope
func (m *Matcher) universe(scope Scope) ([]Entity, error) {
	switch scope.EntityType {
	case store.EntityTicket:
		tickets, err := m.store.Tickets(scope.TenantID)
		if err != nil {
			return nil, err
		}
		entities := make([]Entity, len(tickets))
		for i := range tickets {
			entities[i] = Entity{Type: store.EntityTicket, Ticket: &tickets[i]}
		}
		return entities, nil

	case store.EntityUser:
		users, err := m.store.Users(scope.TenantID)
		if err != nil {
			return nil, err
		}
		entities := make([]Entity, len(users))
		for i := range users {
			entities[i] = Entity{Type: store.EntityUser, User: &users[i]}
		}
		return entities, nil
	}
	return nil, fmt.Errorf("unknown entity type: %s", scope.EntityType)
}

// entity loads one entity, or nil when absent
func (m *Matcher) entity(scope Scope, entityID string) (*Entity, error) {
	switch scope.EntityType {
	case store.EntityTicket:
		ticket, err := m.store.Ticket(scope.TenantID, entityID)
		if err != nil || ticket == nil {
			return nil, err
		}
		return &Entity{Type: store.EntityTicket, Ticket: ticket}, nil

	case store.EntityUser:
		user, err := m.store.User(scope.TenantID, entityID)
		if err != nil || user == nil {
			return nil, err
		}
		return &Entity{Type: store.EntityUser, User: user}, nil
	}
	return nil, fmt.Errorf("unknown entity type: %s", scope.EntityType)
}

// safeMetrics applies fn when metrics are enabled
func (m *Matcher) safeMetrics(fn func(*metrics.Metrics)) {
	if m.metrics != nil {
		fn(m.metrics)
	}
}
