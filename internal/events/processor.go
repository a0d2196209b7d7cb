//file: internal/events/processor.go
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"desk-rule-matcher/internal/logger"
	"desk-rule-matcher/internal/match"
	"desk-rule-matcher/internal/metrics"
)

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Workers   int
	QueueSize int
}

// Processor runs entity events against the candidate rules of their
// tenant using a bounded worker pool. Each evaluation is independent
// and shares no state with the others, so workers need no locking
// beyond the job channel.
type Processor struct {
	index   *match.RuleIndex
	matcher *match.Matcher
	pub     Publisher
	jobPool *JobPool
	workers int
	jobChan chan *Job
	logger  *logger.Logger
	metrics *metrics.Metrics
	stats   ProcessorStats
	wg      sync.WaitGroup
}

// ProcessorStats tracks processing counters
type ProcessorStats struct {
	Received  uint64
	Processed uint64
	Matched   uint64
	Errors    uint64
}

// NewProcessor creates a processor and starts its worker pool
func NewProcessor(cfg ProcessorConfig, index *match.RuleIndex, matcher *match.Matcher,
	pub Publisher, log *logger.Logger, m *metrics.Metrics) *Processor {

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}

	p := &Processor{
		index:   index,
		matcher: matcher,
		pub:     pub,
		jobPool: NewJobPool(),
		workers: cfg.Workers,
		jobChan: make(chan *Job, cfg.QueueSize),
		logger:  log,
		metrics: m,
	}

	p.startWorkers()

	return p
}

// Enqueue accepts a raw event payload for background evaluation
func (p *Processor) Enqueue(payload []byte) error {
	atomic.AddUint64(&p.stats.Received, 1)
	p.safeMetrics(func(m *metrics.Metrics) {
		m.IncEventsTotal("received")
		m.SetQueueDepth(float64(len(p.jobChan)))
	})

	job := p.jobPool.Get()
	job.Raw = append(job.Raw, payload...)

	select {
	case p.jobChan <- job:
		return nil
	default:
		p.jobPool.Put(job)
		atomic.AddUint64(&p.stats.Errors, 1)
		p.safeMetrics(func(m *metrics.Metrics) { m.IncEventsTotal("error") })
		return fmt.Errorf("event queue is full")
	}
}

// QueueDepth returns the number of events waiting for a worker
func (p *Processor) QueueDepth() int {
	return len(p.jobChan)
}

// GetStats returns current processing statistics
func (p *Processor) GetStats() ProcessorStats {
	return ProcessorStats{
		Received:  atomic.LoadUint64(&p.stats.Received),
		Processed: atomic.LoadUint64(&p.stats.Processed),
		Matched:   atomic.LoadUint64(&p.stats.Matched),
		Errors:    atomic.LoadUint64(&p.stats.Errors),
	}
}

// Close shuts down the worker pool after draining queued jobs
func (p *Processor) Close() {
	close(p.jobChan)
	p.wg.Wait()
}

func (p *Processor) startWorkers() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Processor) worker() {
	defer p.wg.Done()

	for job := range p.jobChan {
		p.processJob(job)
	}
}

// processJob evaluates one entity event against every candidate rule
// of its tenant, in priority order, and publishes a notification per
// match. Firing bookkeeping (execution log, skip-already-fired) is the
// automation service's job, not ours.
func (p *Processor) processJob(job *Job) {
	defer p.jobPool.Put(job)

	if err := json.Unmarshal(job.Raw, &job.Event); err != nil {
		atomic.AddUint64(&p.stats.Errors, 1)
		p.safeMetrics(func(m *metrics.Metrics) { m.IncEventsTotal("error") })
		p.logger.Error("failed to unmarshal entity event", "error", err)
		return
	}

	event := &job.Event
	if event.TenantID == "" || event.EntityID == "" {
		atomic.AddUint64(&p.stats.Errors, 1)
		p.safeMetrics(func(m *metrics.Metrics) { m.IncEventsTotal("error") })
		p.logger.Error("entity event missing tenant or entity id", "event", event.ID)
		return
	}

	job.Rules = append(job.Rules, p.index.Find(event.TenantID, event.EntityType)...)

	for _, rule := range job.Rules {
		// Rules bound to a specific trigger event only run for it
		if rule.Event != "" && rule.Event != event.Event {
			continue
		}

		matched, err := p.matcher.Matches(rule, event.EntityID)
		if err != nil {
			atomic.AddUint64(&p.stats.Errors, 1)
			p.logger.Error("rule evaluation failed",
				"rule", rule.ID,
				"tenant", event.TenantID,
				"entity", event.EntityID,
				"error", err)
			continue
		}
		if !matched {
			continue
		}

		atomic.AddUint64(&p.stats.Matched, 1)
		notification := &MatchNotification{
			ID:         uuid.NewString(),
			RuleID:     rule.ID,
			RuleName:   rule.Name,
			TenantID:   event.TenantID,
			EntityType: event.EntityType,
			EntityID:   event.EntityID,
			Event:      event.Event,
			MatchedAt:  time.Now().UTC(),
		}

		if err := p.pub.PublishMatch(notification); err != nil {
			atomic.AddUint64(&p.stats.Errors, 1)
			p.safeMetrics(func(m *metrics.Metrics) { m.IncNotificationsTotal("error") })
			p.logger.Error("failed to publish match notification",
				"rule", rule.ID,
				"entity", event.EntityID,
				"error", err)
			continue
		}
		p.safeMetrics(func(m *metrics.Metrics) { m.IncNotificationsTotal("success") })
	}

	atomic.AddUint64(&p.stats.Processed, 1)
	p.safeMetrics(func(m *metrics.Metrics) {
		m.IncEventsTotal("processed")
		m.SetQueueDepth(float64(len(p.jobChan)))
	})
}

func (p *Processor) safeMetrics(fn func(*metrics.Metrics)) {
	if p.metrics != nil {
		fn(p.metrics)
	}
}
