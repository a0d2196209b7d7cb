package match

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"desk-rule-matcher/internal/logger"
	"desk-rule-matcher/internal/store"
)

func newTestMatcher() (*store.MemoryStore, *Matcher) {
	st := store.NewMemoryStore()
	return st, NewMatcher(st, logger.NewNop(), nil)
}

func ticketRule(tenantID string, groups ...ConditionGroup) *Rule {
	return &Rule{
		ID:         "rule-1",
		TenantID:   tenantID,
		Name:       "test rule",
		EntityType: store.EntityTicket,
		Enabled:    true,
		Groups:     groups,
	}
}

func group(joinWith JoinType, conditions ...Condition) ConditionGroup {
	return ConditionGroup{JoinWith: joinWith, Conditions: conditions}
}

func seedTicket(st *store.MemoryStore, tenantID, id, subject string) {
	st.AddTicket(store.Ticket{
		ID:        id,
		TenantID:  tenantID,
		Subject:   subject,
		Status:    "open",
		CreatedAt: time.Now().Add(-time.Hour),
	})
}

func ids(set IDSet) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func TestMatchingIDsSubjectDoesNotContain(t *testing.T) {
	st, m := newTestMatcher()

	subjects := map[string]string{
		"t1": "Please help with my invoice",
		"t2": "Refund request",
		"t3": "Application error on login",
		"t4": "Order never arrived",
		"t5": "Broken checkout flow",
	}
	for id, subject := range subjects {
		seedTicket(st, "acme", id, subject)
	}

	rule := ticketRule("acme", group("", Condition{
		Kind:  KindCore,
		Field: "subject",
		Verb:  VerbDoesNotContain,
		Value: "help",
	}))

	set, err := m.MatchingIDs(rule)
	require.NoError(t, err)
	assert.Len(t, set, 4)
	assert.False(t, set.Contains("t1"))
	assert.ElementsMatch(t, []string{"t2", "t3", "t4", "t5"}, ids(set))
}

func TestMatchingIDsTwoGroupsJoinedWithOr(t *testing.T) {
	st, m := newTestMatcher()

	st.AddTicket(store.Ticket{ID: "t1", TenantID: "acme", Subject: "Refund for order 42", Status: "open"})
	st.AddTicket(store.Ticket{ID: "t2", TenantID: "acme", Subject: "Application crashed", Status: "open"})
	st.AddTicket(store.Ticket{ID: "t3", TenantID: "acme", Subject: "Where is my parcel", Status: "open"})

	rule := ticketRule("acme",
		group("", Condition{Kind: KindCore, Field: "subject", Verb: VerbContains, Value: "refund"}),
		group(JoinOr, Condition{Kind: KindCore, Field: "subject", Verb: VerbContains, Value: "application"}),
	)

	set, err := m.MatchingIDs(rule)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2"}, ids(set))
}

func TestMatchingIDsConditionJoinWithinGroup(t *testing.T) {
	st, m := newTestMatcher()

	st.AddTicket(store.Ticket{ID: "t1", TenantID: "acme", Subject: "refund please", Status: "open", Priority: 3})
	st.AddTicket(store.Ticket{ID: "t2", TenantID: "acme", Subject: "refund please", Status: "closed", Priority: 3})
	st.AddTicket(store.Ticket{ID: "t3", TenantID: "acme", Subject: "other", Status: "open", Priority: 3})

	rule := ticketRule("acme", group("",
		Condition{Kind: KindCore, Field: "subject", Verb: VerbContains, Value: "refund"},
		Condition{Kind: KindCore, Field: "status", Verb: VerbIs, Value: "open", JoinType: JoinAnd},
	))

	set, err := m.MatchingIDs(rule)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1"}, ids(set))

	// Flip the intra-group join to OR
	rule.Groups[0].Conditions[1].JoinType = JoinOr
	set, err = m.MatchingIDs(rule)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2", "t3"}, ids(set))
}

func TestMatchingIDsNoGroupsMatchesUniverse(t *testing.T) {
	st, m := newTestMatcher()
	seedTicket(st, "acme", "t1", "a")
	seedTicket(st, "acme", "t2", "b")

	set, err := m.MatchingIDs(ticketRule("acme"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2"}, ids(set))
}

func TestMatchingIDsEmptyGroupsAreIdentity(t *testing.T) {
	st, m := newTestMatcher()
	seedTicket(st, "acme", "t1", "refund please")
	seedTicket(st, "acme", "t2", "other")

	// An empty AND group must not wipe out the accumulator, and an
	// empty OR group must not add the universe.
	rule := ticketRule("acme",
		group(""),
		group(JoinAnd, Condition{Kind: KindCore, Field: "subject", Verb: VerbContains, Value: "refund"}),
		group(JoinAnd),
		group(JoinOr),
	)

	set, err := m.MatchingIDs(rule)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1"}, ids(set))
}

func TestMatchingIDsAllGroupsEmptyMatchesUniverse(t *testing.T) {
	st, m := newTestMatcher()
	seedTicket(st, "acme", "t1", "a")
	seedTicket(st, "acme", "t2", "b")

	rule := ticketRule("acme", group(""), group(JoinAnd))

	set, err := m.MatchingIDs(rule)
	require.NoError(t, err)
	assert.Len(t, set, 2)
}

func TestMatchingIDsTenantIsolation(t *testing.T) {
	st, m := newTestMatcher()
	seedTicket(st, "acme", "t1", "refund")
	seedTicket(st, "globex", "t2", "refund")

	rule := ticketRule("acme", group("", Condition{
		Kind: KindCore, Field: "subject", Verb: VerbContains, Value: "refund",
	}))

	set, err := m.MatchingIDs(rule)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1"}, ids(set))
}

func TestMatchingIDsUnsupportedVerbMatchesNothing(t *testing.T) {
	st, m := newTestMatcher()
	seedTicket(st, "acme", "t1", "anything")

	// starts_with is not legal for the status enum; bulk matching must
	// degrade to the empty set rather than fail or match everything.
	rule := ticketRule("acme", group("", Condition{
		Kind: KindCore, Field: "status", Verb: VerbStartsWith, Value: "op",
	}))

	set, err := m.MatchingIDs(rule)
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestMatchingIDsUnsupportedVerbUnderOrStillMatchesOtherBranch(t *testing.T) {
	st, m := newTestMatcher()
	seedTicket(st, "acme", "t1", "refund")
	seedTicket(st, "acme", "t2", "other")

	rule := ticketRule("acme", group("",
		Condition{Kind: KindCore, Field: "status", Verb: VerbStartsWith, Value: "op"},
		Condition{Kind: KindCore, Field: "subject", Verb: VerbContains, Value: "refund", JoinType: JoinOr},
	))

	set, err := m.MatchingIDs(rule)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1"}, ids(set))
}

func TestMatchesUnknownEntity(t *testing.T) {
	_, m := newTestMatcher()

	matched, err := m.Matches(ticketRule("acme"), "missing")
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestMatchesUserRule(t *testing.T) {
	st, m := newTestMatcher()
	st.AddUser(store.User{ID: "u1", TenantID: "acme", Language: "de"})
	st.AddUser(store.User{ID: "u2", TenantID: "acme", Language: "en"})

	rule := &Rule{
		ID:         "rule-u",
		TenantID:   "acme",
		EntityType: store.EntityUser,
		Enabled:    true,
		Groups: []ConditionGroup{
			group("", Condition{Kind: KindCore, Field: "language", Verb: VerbIs, Value: "de"}),
		},
	}

	set, err := m.MatchingIDs(rule)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1"}, ids(set))

	matched, err := m.Matches(rule, "u1")
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = m.Matches(rule, "u2")
	require.NoError(t, err)
	assert.False(t, matched)
}

// Bulk and per-entity evaluation share compiled predicates; this pins
// the agreement down across a grid of join shapes.
func TestBulkAndPerEntityAgree(t *testing.T) {
	st, m := newTestMatcher()

	for i := 1; i <= 6; i++ {
		id := fmt.Sprintf("t%d", i)
		ticket := store.Ticket{
			ID:       id,
			TenantID: "acme",
			Subject:  fmt.Sprintf("ticket %d refund", i),
			Status:   "open",
			Priority: i,
		}
		if i%2 == 0 {
			ticket.Status = "pending"
		}
		if i > 4 {
			ticket.Subject = fmt.Sprintf("ticket %d other", i)
		}
		st.AddTicket(ticket)
		st.SetTags("acme", store.EntityTicket, id, []string{fmt.Sprintf("tag%d", i%3)})
	}

	rules := []*Rule{
		ticketRule("acme", group("",
			Condition{Kind: KindCore, Field: "subject", Verb: VerbContains, Value: "refund"},
			Condition{Kind: KindCore, Field: "status", Verb: VerbIs, Value: "open", JoinType: JoinAnd},
		)),
		ticketRule("acme",
			group("", Condition{Kind: KindCore, Field: "priority", Verb: VerbGreaterThan, Value: "3"}),
			group(JoinOr, Condition{Kind: KindTags, Verb: VerbContainsAnyOf, TagIDs: []string{"tag0"}}),
		),
		ticketRule("acme",
			group("", Condition{Kind: KindCore, Field: "status", Verb: VerbIsNot, Value: "closed"}),
			group(JoinAnd,
				Condition{Kind: KindCore, Field: "subject", Verb: VerbContains, Value: "other"},
				Condition{Kind: KindCore, Field: "priority", Verb: VerbLessThan, Value: "3", JoinType: JoinOr},
			),
		),
		ticketRule("acme"),
	}

	for ri, rule := range rules {
		set, err := m.MatchingIDs(rule)
		require.NoError(t, err)

		for i := 1; i <= 6; i++ {
			id := fmt.Sprintf("t%d", i)
			matched, err := m.Matches(rule, id)
			require.NoError(t, err)
			assert.Equal(t, set.Contains(id), matched,
				"rule %d disagrees between bulk and per-entity for %s", ri, id)
		}
	}
}
