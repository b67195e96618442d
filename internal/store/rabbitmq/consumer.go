package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/logger"
)

// JobHandler processes one job id. A non-nil error dead-letters the delivery.
type JobHandler func(ctx context.Context, jobID string) error

type Consumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	queue       string
	concurrency int
	log         *logger.Logger
}

func NewConsumer(url, queue string, concurrency int, log *logger.Logger) (*Consumer, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}

	// strict concurrency control
	if err := ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, queue: queue, concurrency: concurrency, log: log}, nil
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Run consumes until ctx is done, then drains in-flight jobs.
func (c *Consumer) Run(ctx context.Context, handle JobHandler) error {
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	c.log.Info("worker started", "queue", c.queue, "concurrency", c.concurrency)
	return serve(ctx, msgs, c.concurrency, handle, c.log)
}

var errDeliveriesClosed = errors.New("rabbitmq: delivery channel closed")

// drainTimeout bounds how long in-flight jobs keep running once shutdown
// starts. Jobs cut off after that are requeued.
var drainTimeout = 30 * time.Second

// serve fans deliveries out to a fixed pool of workers. On cancel, deliveries
// that have not started go back to the queue and in-flight jobs finish on a
// context that outlives ctx by at most drainTimeout.
func serve(ctx context.Context, msgs <-chan amqp.Delivery, concurrency int, handle JobHandler, log *logger.Logger) error {
	jobs := make(chan amqp.Delivery, concurrency*2)

	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()
	go func() {
		select {
		case <-ctx.Done():
		case <-runCtx.Done():
			return
		}
		t := time.NewTimer(drainTimeout)
		defer t.Stop()
		select {
		case <-t.C:
			log.Warn("drain timeout reached, interrupting in-flight jobs")
			cancelRun()
		case <-runCtx.Done():
		}
	}()

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				if ctx.Err() != nil {
					requeue(d, log)
					continue
				}
				process(ctx, runCtx, workerID, d, handle, log)
			}
		}(i)
	}

	stop := func() {
		close(jobs)
		wg.Wait()
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			stop()
			return nil

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				stop()
				return errDeliveriesClosed
			}
			select {
			case jobs <- d:
			case <-ctx.Done():
				requeue(d, log)
				log.Info("worker shutting down")
				stop()
				return nil
			}
		}
	}
}

func requeue(d amqp.Delivery, log *logger.Logger) {
	if err := d.Nack(false, true); err != nil {
		log.Error("requeue failed", "delivery_tag", d.DeliveryTag, "error", err)
	}
}

// process runs one delivery on runCtx. ctx is the consumer's lifetime and
// decides whether a cancelled job is requeued or dead-lettered.
func process(ctx, runCtx context.Context, workerID int, d amqp.Delivery, handle JobHandler, log *logger.Logger) {
	var m JobMessage
	if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
		log.Warn("bad message", "worker", workerID, "error", err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	if err := handle(runCtx, m.JobID); err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			log.Warn("job interrupted by shutdown, requeued", "worker", workerID, "job_id", m.JobID, "error", err)
			requeue(d, log)
			return
		}
		log.Warn("job failed", "worker", workerID, "job_id", m.JobID, "cost", time.Since(start).String(), "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error("ack failed", "worker", workerID, "job_id", m.JobID, "error", err)
	}
}
