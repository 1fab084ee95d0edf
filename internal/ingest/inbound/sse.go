package inbound

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgrouter"
)

// latestSink keeps only the newest status. Send never blocks, so a slow
// client skips intermediate updates but always gets the last one.
type latestSink struct {
	mu     sync.Mutex
	job    entity.UploadJob
	ready  bool
	notify chan struct{}
}

func newLatestSink() *latestSink {
	return &latestSink{notify: make(chan struct{}, 1)}
}

func (s *latestSink) Send(job entity.UploadJob) {
	s.mu.Lock()
	s.job = job
	s.ready = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *latestSink) take() (entity.UploadJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return entity.UploadJob{}, false
	}
	s.ready = false
	return s.job, true
}

type StreamEndpoint struct {
	uc        uc
	keepAlive time.Duration
}

// Events streams a job's status as server-sent events until the job ends
// or the client goes away.
func (s *StreamEndpoint) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := strings.TrimSpace(pkgrouter.GetParam(ctx, "id"))

	sink := newLatestSink()
	unsubscribe, err := s.uc.Watch(ctx, jobID, sink)
	if err != nil {
		pkgrouter.WriteError(ctx, w, err)
		return
	}
	defer unsubscribe()

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		slog.DebugContext(ctx, "write deadline not cleared", "error", err)
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.WarnContext(ctx, "progress stream cannot flush", "error", err)
		return
	}

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}

		case <-sink.notify:
			job, ok := sink.take()
			if !ok {
				continue
			}
			if err := writeEvent(w, job); err != nil {
				slog.WarnContext(ctx, "failed to write progress event", "job_id", jobID, "error", err)
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
			if job.Status.Terminal() {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, job entity.UploadJob) error {
	data, err := json.Marshal(toHTTPJob(job))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
	return err
}
