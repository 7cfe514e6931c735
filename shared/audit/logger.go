// Package audit records sensitive actions off the request path. Callers enqueue entries
// without blocking; a worker pool drains them into a Sink. Failures are logged and counted,
// never returned to the caller.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// Entry is one audit event as handed over by handlers
type Entry struct {
	ID         uuid.UUID              `json:"id"`
	TenantID   *uuid.UUID             `json:"tenantId,omitempty"`
	UserID     *uuid.UUID             `json:"userId,omitempty"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entityType,omitempty"`
	EntityID   *uuid.UUID             `json:"entityId,omitempty"`
	IPAddress  string                 `json:"ipAddress,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// ToModel converts the entry into its table row
func (e Entry) ToModel() *models.AuditLog {
	return &models.AuditLog{
		ID:         e.ID,
		TenantID:   e.TenantID,
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		IPAddress:  e.IPAddress,
		Metadata:   e.Metadata,
		CreatedAt:  e.CreatedAt,
	}
}

// Sink persists or forwards audit entries
type Sink interface {
	Write(ctx context.Context, e Entry) error
	Close() error
}

// Recorder is what handlers depend on
type Recorder interface {
	Record(e Entry)
}

var eventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "saas_audit_events_total",
		Help: "Audit events by outcome",
	},
	[]string{"result"},
)

// Options tunes the worker pool
type Options struct {
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
}

// Logger is a buffered, worker-backed Recorder
type Logger struct {
	sink    Sink
	events  chan Entry
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewLogger starts opts.Workers goroutines draining into sink
func NewLogger(sink Sink, opts Options) *Logger {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	l := &Logger{
		sink:    sink,
		events:  make(chan Entry, opts.QueueSize),
		timeout: opts.WriteTimeout,
	}
	for i := 0; i < opts.Workers; i++ {
		l.wg.Add(1)
		go l.worker(i)
	}
	logrus.Infof("audit logger started with %d workers", opts.Workers)
	return l
}

// Record queues e. It never blocks: when the queue is full the entry is dropped.
func (l *Logger) Record(e Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		eventsTotal.WithLabelValues("dropped").Inc()
		logrus.WithField("action", e.Action).Warn("audit logger closed, event dropped")
		return
	}

	select {
	case l.events <- e:
	default:
		eventsTotal.WithLabelValues("dropped").Inc()
		logrus.WithField("action", e.Action).Warn("audit queue full, event dropped")
	}
}

func (l *Logger) worker(id int) {
	defer l.wg.Done()
	for e := range l.events {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		err := l.sink.Write(ctx, e)
		cancel()
		if err != nil {
			eventsTotal.WithLabelValues("failed").Inc()
			logrus.WithFields(logrus.Fields{
				"worker": id,
				"action": e.Action,
				"error":  err,
			}).Error("failed to write audit event")
			continue
		}
		eventsTotal.WithLabelValues("written").Inc()
	}
}

// Close stops intake, waits for queued entries to be written and closes the sink
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.events)
	l.mu.Unlock()

	l.wg.Wait()
	return l.sink.Close()
}
