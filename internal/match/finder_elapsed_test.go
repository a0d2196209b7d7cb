package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"desk-rule-matcher/internal/store"
)

func elapsedRule(field string, verb Verb, value string) *Rule {
	return ticketRule("acme", group("", Condition{
		Kind: KindTimeBased, Field: field, Verb: verb, Value: value,
	}))
}

func TestElapsedSinceCreation(t *testing.T) {
	st, m := newTestMatcher()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.compiler.now = func() time.Time { return now }

	// 5h30m old: elapsed hours floor to 5
	st.AddTicket(store.Ticket{ID: "t1", TenantID: "acme", Status: "open", CreatedAt: now.Add(-5*time.Hour - 30*time.Minute)})

	tests := []struct {
		verb    Verb
		value   string
		matched bool
	}{
		{VerbIs, "5", true},
		{VerbIs, "6", false},
		{VerbLessThan, "6", true},
		{VerbLessThan, "5", false},
		{VerbGreaterThan, "4", true},
		{VerbGreaterThan, "5", false},
	}

	for _, tt := range tests {
		matched, err := m.Matches(elapsedRule("created", tt.verb, tt.value), "t1")
		require.NoError(t, err)
		assert.Equal(t, tt.matched, matched, "created %s %s", tt.verb, tt.value)
	}
}

func TestElapsedNamedTimestamps(t *testing.T) {
	st, m := newTestMatcher()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.compiler.now = func() time.Time { return now }

	assigned := now.Add(-3 * time.Hour)
	st.AddTicket(store.Ticket{
		ID: "t1", TenantID: "acme", Status: "open",
		CreatedAt:  now.Add(-48 * time.Hour),
		AssignedAt: &assigned,
	})
	st.AddTicket(store.Ticket{
		ID: "t2", TenantID: "acme", Status: "open",
		CreatedAt: now.Add(-48 * time.Hour),
	})

	matched, err := m.Matches(elapsedRule("assigned_at", VerbGreaterThan, "2"), "t1")
	require.NoError(t, err)
	assert.True(t, matched)

	// A timestamp that never happened makes the condition false
	matched, err = m.Matches(elapsedRule("assigned_at", VerbGreaterThan, "2"), "t2")
	require.NoError(t, err)
	assert.False(t, matched)

	matched, err = m.Matches(elapsedRule("assigned_at", VerbLessThan, "2"), "t2")
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestElapsedStateHours(t *testing.T) {
	st, m := newTestMatcher()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.compiler.now = func() time.Time { return now }

	created := now.Add(-72 * time.Hour)
	st.AddTicket(store.Ticket{ID: "t1", TenantID: "acme", Status: "pending", CreatedAt: created})
	st.AddTransition(store.StatusTransition{TenantID: "acme", TicketID: "t1", FromStatus: "open", ToStatus: "pending", At: now.Add(-30 * time.Hour)})
	st.AddTransition(store.StatusTransition{TenantID: "acme", TicketID: "t1", FromStatus: "pending", ToStatus: "open", At: now.Add(-20 * time.Hour)})
	st.AddTransition(store.StatusTransition{TenantID: "acme", TicketID: "t1", FromStatus: "open", ToStatus: "pending", At: now.Add(-10 * time.Hour)})

	// The entry instant is the latest transition into the active state
	matched, err := m.Matches(elapsedRule("status.hours.pending", VerbIs, "10"), "t1")
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = m.Matches(elapsedRule("status.hours.pending", VerbGreaterThan, "10"), "t1")
	require.NoError(t, err)
	assert.False(t, matched)

	// Querying a state the ticket is not currently in matches nothing
	matched, err = m.Matches(elapsedRule("status.hours.open", VerbGreaterThan, "0"), "t1")
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestElapsedStateHoursWithoutTransitions(t *testing.T) {
	st, m := newTestMatcher()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.compiler.now = func() time.Time { return now }

	// The ticket has occupied its state since creation
	st.AddTicket(store.Ticket{ID: "t1", TenantID: "acme", Status: "open", CreatedAt: now.Add(-6 * time.Hour)})

	matched, err := m.Matches(elapsedRule("status.hours.open", VerbIs, "6"), "t1")
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestElapsedCreatedPseudoStateIgnoresCurrentStatus(t *testing.T) {
	st, m := newTestMatcher()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.compiler.now = func() time.Time { return now }

	st.AddTicket(store.Ticket{ID: "t1", TenantID: "acme", Status: "closed", CreatedAt: now.Add(-25 * time.Hour)})

	matched, err := m.Matches(elapsedRule("status.hours.created", VerbGreaterThan, "24"), "t1")
	require.NoError(t, err)
	assert.True(t, matched)
}

// Once greater_than matches it must keep matching as time advances,
// and less_than must never match again after it stops.
func TestElapsedMonotonicity(t *testing.T) {
	st, m := newTestMatcher()

	created := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	st.AddTicket(store.Ticket{ID: "t1", TenantID: "acme", Status: "open", CreatedAt: created})

	greater := elapsedRule("created", VerbGreaterThan, "10")
	less := elapsedRule("created", VerbLessThan, "10")

	var sawGreater, lostLess bool
	for h := 0; h <= 30; h += 3 {
		now := created.Add(time.Duration(h) * time.Hour)
		m.compiler.now = func() time.Time { return now }

		g, err := m.Matches(greater, "t1")
		require.NoError(t, err)
		l, err := m.Matches(less, "t1")
		require.NoError(t, err)

		if sawGreater {
			assert.True(t, g, "greater_than regressed at %dh", h)
		}
		if lostLess {
			assert.False(t, l, "less_than came back at %dh", h)
		}
		sawGreater = sawGreater || g
		lostLess = lostLess || !l
	}
	assert.True(t, sawGreater)
	assert.True(t, lostLess)
}

func TestElapsedUserCreated(t *testing.T) {
	st, m := newTestMatcher()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.compiler.now = func() time.Time { return now }

	st.AddUser(store.User{ID: "u1", TenantID: "acme", CreatedAt: now.Add(-100 * time.Hour)})

	rule := &Rule{
		ID:         "r",
		TenantID:   "acme",
		EntityType: store.EntityUser,
		Enabled:    true,
		Groups: []ConditionGroup{
			group("", Condition{Kind: KindTimeBased, Field: "created", Verb: VerbGreaterThan, Value: "99"}),
		},
	}

	matched, err := m.Matches(rule, "u1")
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestElapsedMalformedThresholdMatchesNothing(t *testing.T) {
	st, m := newTestMatcher()
	st.AddTicket(store.Ticket{ID: "t1", TenantID: "acme", Status: "open", CreatedAt: time.Now().Add(-time.Hour)})

	set, err := m.MatchingIDs(elapsedRule("created", VerbGreaterThan, "soon"))
	require.NoError(t, err)
	assert.Empty(t, set)
}
