package event

import (
	"sync"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
)

// Sink receives job status updates.
//
// Send is called with the broadcaster lock held: it must not block and must
// not call back into the Broadcaster.
type Sink interface {
	Send(job entity.UploadJob)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(job entity.UploadJob)

func (f SinkFunc) Send(job entity.UploadJob) {
	f(job)
}

type subscription struct {
	sink Sink
}

// Broadcaster fans job status changes out to subscribers, in process and
// synchronously. It keeps the latest status per job so a new subscriber
// starts from the current state instead of a replay.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	latest map[string]entity.UploadJob
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs:   make(map[string]map[*subscription]struct{}),
		latest: make(map[string]entity.UploadJob),
	}
}

// Subscribe registers sink for jobID and immediately sends it the latest
// known status, if any. The returned func removes the subscription and is
// safe to call more than once.
func (b *Broadcaster) Subscribe(jobID string, sink Sink) func() {
	sub := &subscription{sink: sink}

	b.mu.Lock()
	set, ok := b.subs[jobID]
	if !ok {
		set = make(map[*subscription]struct{})
		b.subs[jobID] = set
	}
	set[sub] = struct{}{}

	if job, ok := b.latest[jobID]; ok {
		sink.Send(job)
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			set, ok := b.subs[jobID]
			if !ok {
				return
			}
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, jobID)
			}
		})
	}
}

// Publish records job as the latest status of its id and sends it to every
// subscriber. Publishing with no subscribers only records the status.
func (b *Broadcaster) Publish(job entity.UploadJob) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest[job.ID] = job
	for sub := range b.subs[job.ID] {
		sub.sink.Send(job)
	}
}

// Forget drops the latest status of jobID. Existing subscriptions stay until
// their owners unsubscribe.
func (b *Broadcaster) Forget(jobID string) {
	b.mu.Lock()
	delete(b.latest, jobID)
	b.mu.Unlock()
}

// Subscribers returns the number of subscriptions for jobID.
func (b *Broadcaster) Subscribers(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs[jobID])
}
