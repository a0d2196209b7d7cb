//file: internal/events/events.go

// Package events connects the matching engine to the helpdesk event
// bus: entity-change events come in, match notifications go out. The
// external automation service consumes the notifications, executes
// rule actions and records firings in the execution log; none of that
// happens here.
package events

import (
	"context"
	"time"

	"desk-rule-matcher/internal/store"
)

// EntityEvent is the inbound envelope published by the helpdesk when a
// ticket or user changes.
type EntityEvent struct {
	ID         string           `json:"id"`
	TenantID   string           `json:"tenantId"`
	EntityType store.EntityType `json:"entityType"`
	EntityID   string           `json:"entityId"`
	Event      string           `json:"event"` // created, updated, status_changed, ...
	OccurredAt time.Time        `json:"occurredAt"`
}

// MatchNotification is the outbound envelope published for every rule
// an entity matched.
type MatchNotification struct {
	ID         string           `json:"id"`
	RuleID     string           `json:"ruleId"`
	RuleName   string           `json:"ruleName"`
	TenantID   string           `json:"tenantId"`
	EntityType store.EntityType `json:"entityType"`
	EntityID   string           `json:"entityId"`
	Event      string           `json:"event"`
	MatchedAt  time.Time        `json:"matchedAt"`
}

// Listener receives entity events from a transport and feeds them to a
// processor.
type Listener interface {
	// Start subscribes and begins delivering events to the processor.
	// Delivery stops when ctx is cancelled.
	Start(ctx context.Context, p *Processor) error

	// Close disconnects from the transport
	Close()
}

// Publisher sends match notifications back to the bus
type Publisher interface {
	PublishMatch(n *MatchNotification) error
}
