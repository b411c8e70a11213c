package app

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"focusblock/internal/domain"

	"github.com/oklog/ulid/v2"
)

// ActivitySink receives audit entries after an operation has succeeded.
// Implementations must not block the caller or report failures back to it.
type ActivitySink interface {
	Record(entry domain.ActivityEntry)
}

// RecorderStats is a point-in-time view of the recorder's counters.
type RecorderStats struct {
	Accepted int64 `json:"accepted"`
	Written  int64 `json:"written"`
	Failed   int64 `json:"failed"`
	Dropped  int64 `json:"dropped"`
	Pending  int   `json:"pending"`
}

// ActivityRecorder writes activity entries to the activity repository on a
// background goroutine. Entries are written one at a time in the order they
// were accepted.
type ActivityRecorder struct {
	repo      domain.ActivityRepository
	queueSize int
	timeout   time.Duration
	now       func() time.Time
	logger    *log.Logger

	queue  chan domain.ActivityEntry
	done   chan struct{}
	mu     sync.RWMutex
	closed bool

	accepted atomic.Int64
	written  atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

// RecorderOption configures an ActivityRecorder.
type RecorderOption func(*ActivityRecorder)

// WithQueueSize sets how many entries may wait for the writer.
func WithQueueSize(n int) RecorderOption {
	return func(r *ActivityRecorder) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithWriteTimeout bounds each repository write.
func WithWriteTimeout(d time.Duration) RecorderOption {
	return func(r *ActivityRecorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRecorderClock overrides the timestamp source.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *ActivityRecorder) {
		r.now = now
	}
}

// WithRecorderLogger sets where write failures are reported.
func WithRecorderLogger(l *log.Logger) RecorderOption {
	return func(r *ActivityRecorder) {
		r.logger = l
	}
}

// NewActivityRecorder starts a recorder backed by repo. Call Close to drain
// pending entries on shutdown.
func NewActivityRecorder(repo domain.ActivityRepository, opts ...RecorderOption) *ActivityRecorder {
	r := &ActivityRecorder{
		repo:      repo,
		queueSize: 256,
		timeout:   5 * time.Second,
		now:       time.Now,
		logger:    log.Default(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.queue = make(chan domain.ActivityEntry, r.queueSize)

	go r.run()
	return r
}

// Record stamps the entry and hands it to the writer. It never blocks: when
// the queue is full or the recorder is closed the entry is dropped.
func (r *ActivityRecorder) Record(e domain.ActivityEntry) {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now().UTC()
	}
	if e.ResourceType == "" {
		e.ResourceType = domain.ResourceFocusSession
	}
	if e.Metadata == nil {
		e.Metadata = domain.Snapshot{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(e, "recorder closed")
		return
	}
	select {
	case r.queue <- e:
		r.accepted.Add(1)
	default:
		r.drop(e, "queue full")
	}
}

// Stats returns the current counters.
func (r *ActivityRecorder) Stats() RecorderStats {
	return RecorderStats{
		Accepted: r.accepted.Load(),
		Written:  r.written.Load(),
		Failed:   r.failed.Load(),
		Dropped:  r.dropped.Load(),
		Pending:  len(r.queue),
	}
}

// Close stops accepting entries and waits for the queue to drain or ctx to
// expire, whichever comes first.
func (r *ActivityRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *ActivityRecorder) run() {
	defer close(r.done)
	for e := range r.queue {
		r.write(e)
	}
}

func (r *ActivityRecorder) write(e domain.ActivityEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			r.failed.Add(1)
			r.logger.Printf("activity: panic recording %s %s: %v", e.Action, e.ResourceID, p)
		}
	}()

	if err := r.repo.AppendActivity(ctx, e); err != nil {
		r.failed.Add(1)
		r.logger.Printf("activity: failed to record %s %s for user %s: %v", e.Action, e.ResourceID, e.User, err)
		return
	}
	r.written.Add(1)
}

func (r *ActivityRecorder) drop(e domain.ActivityEntry, reason string) {
	r.dropped.Add(1)
	r.logger.Printf("activity: dropped %s %s for user %s: %s", e.Action, e.ResourceID, e.User, reason)
}
