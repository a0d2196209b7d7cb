//file: internal/events/pool.go
package events

import (
	"sync"

	"desk-rule-matcher/internal/match"
)

// Job carries one entity event through the worker pool
type Job struct {
	Raw           []byte
	Event         EntityEvent
	Rules         []*match.Rule
	Notifications []*MatchNotification
}

// JobPool manages job object reuse
type JobPool struct {
	pool sync.Pool
}

// NewJobPool creates a new job pool
func NewJobPool() *JobPool {
	return &JobPool{
		pool: sync.Pool{
			New: func() interface{} {
				return &Job{
					Rules:         make([]*match.Rule, 0, 5),
					Notifications: make([]*MatchNotification, 0, 5),
				}
			},
		},
	}
}

// Get retrieves a job object from the pool
func (p *JobPool) Get() *Job {
	return p.pool.Get().(*Job)
}

// Put returns a job object to the pool
func (p *JobPool) Put(job *Job) {
	// Clear job data before returning to pool
	job.Raw = job.Raw[:0]
	job.Event = EntityEvent{}
	job.Rules = job.Rules[:0]
	job.Notifications = job.Notifications[:0]
	p.pool.Put(job)
}
