package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pavitra93/go-multi-tenant-saas/shared/audit"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"github.com/pavitra93/go-multi-tenant-saas/shared/repository"
	"github.com/pavitra93/go-multi-tenant-saas/shared/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{messages: msgs}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type flakySink struct {
	failures int
	calls    int
	written  []audit.Entry
}

func (s *flakySink) Write(_ context.Context, e audit.Entry) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("database unavailable")
	}
	s.written = append(s.written, e)
	return nil
}

func (s *flakySink) Close() error { return nil }

func encode(t *testing.T, e audit.Entry, offset int64) kafka.Message {
	t.Helper()
	value, err := json.Marshal(e)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: value}
}

func TestConsumerPersistsEvents(t *testing.T) {
	store := repository.New(testutil.NewTestDB(t))
	tenantID := uuid.New()
	entry := audit.Entry{
		ID:        uuid.New(),
		TenantID:  &tenantID,
		Action:    models.ActionProjectCreate,
		Metadata:  map[string]interface{}{"name": "launch"},
		CreatedAt: time.Now().UTC(),
	}

	reader := newFakeReader(
		encode(t, entry, 1),
		kafka.Message{Offset: 2, Value: []byte("not json")},
		encode(t, entry, 3),
	)
	consumer := NewConsumer(reader, audit.NewDBSink(store))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 3 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	logs, total, err := store.ListAuditLogs(context.Background(), repository.AuditFilter{Page: repository.Page{Page: 1, Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "redelivered event must not be stored twice")
	assert.Equal(t, entry.ID, logs[0].ID)
	assert.Equal(t, "launch", logs[0].Metadata["name"])
}

func TestHandleMessageRetries(t *testing.T) {
	entry := audit.Entry{ID: uuid.New(), Action: models.ActionUserLogin}

	sink := &flakySink{failures: 2}
	consumer := NewConsumer(newFakeReader(), sink)
	consumer.backoff = time.Millisecond

	require.NoError(t, consumer.handleMessage(context.Background(), encode(t, entry, 1)))
	assert.Equal(t, 3, sink.calls)
	require.Len(t, sink.written, 1)

	broken := &flakySink{failures: 100}
	consumer = NewConsumer(newFakeReader(), broken)
	consumer.backoff = time.Millisecond
	err := consumer.handleMessage(context.Background(), encode(t, entry, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("after %d attempts", consumer.maxRetries))
}
