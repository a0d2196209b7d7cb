//file: internal/match/index.go
package match

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"desk-rule-matcher/internal/logger"
	"desk-rule-matcher/internal/metrics"
	"desk-rule-matcher/internal/store"
)

// RuleIndex provides fast candidate-rule lookup for the event path,
// keyed by tenant and entity type. Lookup results are ordered by
// priority so the automation side can fire rules in a stable order.
type RuleIndex struct {
	byTenant map[string][]*Rule
	stats    IndexStats
	logger   *logger.Logger
	metrics  *metrics.Metrics
	mu       sync.RWMutex
}

// IndexStats tracks rule index statistics
type IndexStats struct {
	RuleCount  uint64
	Lookups    uint64
	Matches    uint64
	LastUpdate time.Time
}

// NewRuleIndex creates a new rule index
func NewRuleIndex(log *logger.Logger, m *metrics.Metrics) *RuleIndex {
	if log == nil {
		log = logger.NewNop()
	}
	return &RuleIndex{
		byTenant: make(map[string][]*Rule),
		logger:   log,
		metrics:  m,
		stats: IndexStats{
			LastUpdate: time.Now(),
		},
	}
}

// Add adds a rule to the index
func (idx *RuleIndex) Add(rule *Rule) error {
	if rule == nil {
		return fmt.Errorf("rule cannot be nil")
	}
	if rule.TenantID == "" {
		return fmt.Errorf("rule %q has no tenant", rule.ID)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	rules := append(idx.byTenant[rule.TenantID], rule)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
	idx.byTenant[rule.TenantID] = rules

	atomic.AddUint64(&idx.stats.RuleCount, 1)
	idx.stats.LastUpdate = time.Now()

	if idx.metrics != nil {
		idx.metrics.SetRulesActive(float64(atomic.LoadUint64(&idx.stats.RuleCount)))
	}

	idx.logger.Debug("rule added to index",
		"rule", rule.ID,
		"tenant", rule.TenantID,
		"entityType", rule.EntityType)

	return nil
}

// Remove removes a rule from the index
func (idx *RuleIndex) Remove(rule *Rule) error {
	if rule == nil {
		return fmt.Errorf("rule cannot be nil")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	rules := idx.byTenant[rule.TenantID]
	for i, r := range rules {
		if r == rule {
			idx.byTenant[rule.TenantID] = append(rules[:i], rules[i+1:]...)
			atomic.AddUint64(&idx.stats.RuleCount, ^uint64(0))
			break
		}
	}
	if len(idx.byTenant[rule.TenantID]) == 0 {
		delete(idx.byTenant, rule.TenantID)
	}

	idx.stats.LastUpdate = time.Now()

	if idx.metrics != nil {
		idx.metrics.SetRulesActive(float64(atomic.LoadUint64(&idx.stats.RuleCount)))
	}

	idx.logger.Debug("rule removed from index",
		"rule", rule.ID,
		"tenant", rule.TenantID)

	return nil
}

// Find returns the enabled rules for a tenant and entity type, in
// priority order.
func (idx *RuleIndex) Find(tenantID string, entityType store.EntityType) []*Rule {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	atomic.AddUint64(&idx.stats.Lookups, 1)

	var matches []*Rule
	for _, rule := range idx.byTenant[tenantID] {
		if rule.Enabled && rule.EntityType == entityType {
			matches = append(matches, rule)
		}
	}

	if len(matches) > 0 {
		atomic.AddUint64(&idx.stats.Matches, 1)
	}

	idx.logger.Debug("rule lookup completed",
		"tenant", tenantID,
		"entityType", entityType,
		"matchCount", len(matches))

	return matches
}

// Clear removes all rules from the index
func (idx *RuleIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.byTenant = make(map[string][]*Rule)

	atomic.StoreUint64(&idx.stats.RuleCount, 0)
	idx.stats.LastUpdate = time.Now()

	if idx.metrics != nil {
		idx.metrics.SetRulesActive(0)
	}

	idx.logger.Info("rule index cleared")
}

// GetStats returns current index statistics
func (idx *RuleIndex) GetStats() IndexStats {
	return IndexStats{
		RuleCount:  atomic.LoadUint64(&idx.stats.RuleCount),
		Lookups:    atomic.LoadUint64(&idx.stats.Lookups),
		Matches:    atomic.LoadUint64(&idx.stats.Matches),
		LastUpdate: idx.stats.LastUpdate,
	}
}
