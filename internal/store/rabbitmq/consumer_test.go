package rabbitmq

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/logger"
)

type fakeAck struct {
	mu       sync.Mutex
	acked    []uint64
	nack     []uint64
	requeued []uint64
}

func (f *fakeAck) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if requeue {
		f.requeued = append(f.requeued, tag)
		return nil
	}
	f.nack = append(f.nack, tag)
	return nil
}

func (f *fakeAck) Reject(tag uint64, requeue bool) error { return f.Nack(tag, false, requeue) }

func delivery(ack amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: []byte(body)}
}

func TestServe_AcksSuccessAndDeadLettersFailures(t *testing.T) {
	ack := &fakeAck{}
	msgs := make(chan amqp.Delivery, 4)
	msgs <- delivery(ack, 1, `{"job_id":"ok-1"}`)
	msgs <- delivery(ack, 2, `{"job_id":"bad-2"}`)
	msgs <- delivery(ack, 3, `not json`)
	msgs <- delivery(ack, 4, `{"job_id":""}`)
	close(msgs)

	var mu sync.Mutex
	var seen []string
	handle := func(ctx context.Context, jobID string) error {
		mu.Lock()
		seen = append(seen, jobID)
		mu.Unlock()
		if jobID == "bad-2" {
			return errors.New("ingest failed")
		}
		return nil
	}

	err := serve(context.Background(), msgs, 2, handle, logger.Nop())
	assert.ErrorIs(t, err, errDeliveriesClosed)

	sort.Strings(seen)
	assert.Equal(t, []string{"bad-2", "ok-1"}, seen)
	assert.Equal(t, []uint64{1}, ack.acked)

	sort.Slice(ack.nack, func(i, j int) bool { return ack.nack[i] < ack.nack[j] })
	assert.Equal(t, []uint64{2, 3, 4}, ack.nack)
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs := make(chan amqp.Delivery)

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, msgs, 1, func(context.Context, string) error { return nil }, logger.Nop())
	}()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func (f *fakeAck) snapshot() (acked, nack, requeued []uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acked = append(acked, f.acked...)
	nack = append(nack, f.nack...)
	requeued = append(requeued, f.requeued...)
	sort.Slice(requeued, func(i, j int) bool { return requeued[i] < requeued[j] })
	return acked, nack, requeued
}

func waitServe(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServe_CancelRequeuesPendingAndFinishesInFlight(t *testing.T) {
	ack := &fakeAck{}
	msgs := make(chan amqp.Delivery, 3)
	msgs <- delivery(ack, 1, `{"job_id":"job-1"}`)
	msgs <- delivery(ack, 2, `{"job_id":"job-2"}`)
	msgs <- delivery(ack, 3, `{"job_id":"job-3"}`)

	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var handled []string
	handle := func(ctx context.Context, jobID string) error {
		mu.Lock()
		handled = append(handled, jobID)
		mu.Unlock()
		if jobID == "job-1" {
			close(started)
			<-release
		}
		// in-flight work still sees a live context after shutdown begins
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, msgs, 1, handle, logger.Nop()) }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job-1 never started")
	}
	require.Eventually(t, func() bool { return len(msgs) == 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	close(release)
	waitServe(t, done)

	acked, nack, requeued := ack.snapshot()
	assert.Equal(t, []uint64{1}, acked)
	assert.Empty(t, nack)
	assert.Equal(t, []uint64{2, 3}, requeued)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"job-1"}, handled)
}

func TestServe_DrainTimeoutRequeuesInterruptedJob(t *testing.T) {
	prev := drainTimeout
	drainTimeout = 20 * time.Millisecond
	t.Cleanup(func() { drainTimeout = prev })

	ack := &fakeAck{}
	msgs := make(chan amqp.Delivery, 1)
	msgs <- delivery(ack, 7, `{"job_id":"slow"}`)

	started := make(chan struct{})
	handle := func(ctx context.Context, jobID string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, msgs, 1, handle, logger.Nop()) }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}
	cancel()
	waitServe(t, done)

	acked, nack, requeued := ack.snapshot()
	assert.Empty(t, acked)
	assert.Empty(t, nack)
	assert.Equal(t, []uint64{7}, requeued)
}
