// Package worker implements the Async Order Worker (spec.md §4.5): a
// bounded-parallelism consumer that pulls order ids from the
// processing queue and drives each through Orchestrator.ProcessAsync,
// acknowledging on success and relying on queue visibility-timeout
// redelivery on failure. Grounded on the goroutine-pool/channel
// fan-out shape of a Kafka consumer worker retrieved from the wider
// example pack.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/traffictacos/ticketing-core/internal/store"
)

// Processor is the single message-handling operation the worker
// drives; orchestrator.Orchestrator.ProcessAsync satisfies it.
type Processor func(ctx context.Context, orderID string) error

// Worker polls the processing queue and fans each batch out across a
// bounded pool of goroutines.
type Worker struct {
	queue       store.Queue
	process     Processor
	log         zerolog.Logger
	queueName   string
	dlqName     string
	batchSize   int
	parallelism int
	visibility  int
	pollWait    time.Duration
}

// Config carries the worker-pool tuning knobs of spec.md §6
// (`worker.poll_batch_size`, `worker.visibility_timeout_seconds`,
// `worker.parallelism`).
type Config struct {
	QueueName            string
	DeadLetterQueueName  string
	PollBatchSize        int
	VisibilityTimeoutSec int
	Parallelism          int
}

// New builds a Worker. Zero-valued Config fields fall back to
// spec.md's documented defaults.
func New(queue store.Queue, process Processor, log zerolog.Logger, cfg Config) *Worker {
	if cfg.PollBatchSize <= 0 {
		cfg.PollBatchSize = 10
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.VisibilityTimeoutSec <= 0 {
		cfg.VisibilityTimeoutSec = 30
	}
	return &Worker{
		queue:       queue,
		process:     process,
		log:         log,
		queueName:   cfg.QueueName,
		dlqName:     cfg.DeadLetterQueueName,
		batchSize:   cfg.PollBatchSize,
		parallelism: cfg.Parallelism,
		visibility:  cfg.VisibilityTimeoutSec,
		pollWait:    time.Second,
	}
}

// Run polls in a loop until ctx is cancelled. Each poll's batch is
// fanned out across a bounded worker pool; Run blocks until every
// in-flight handler from the current batch finishes before polling
// again, so parallelism never exceeds cfg.Parallelism.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := w.queue.Receive(ctx, w.queueName, w.batchSize, w.visibility)
		if err != nil {
			w.log.Error().Err(err).Msg("worker: receive failed, backing off before next poll")
			if !sleepOrDone(ctx, w.pollWait) {
				return ctx.Err()
			}
			continue
		}
		if len(msgs) == 0 {
			if !sleepOrDone(ctx, w.pollWait) {
				return ctx.Err()
			}
			continue
		}

		w.handleBatch(ctx, msgs)
	}
}

func (w *Worker) handleBatch(ctx context.Context, msgs []store.Message) {
	sem := make(chan struct{}, w.parallelism)
	var wg sync.WaitGroup

	for _, msg := range msgs {
		msg := msg
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			w.handleOne(ctx, msg)
		}()
	}
	wg.Wait()
}

func (w *Worker) handleOne(ctx context.Context, msg store.Message) {
	orderID := string(msg.Body)
	log := w.log.With().Str("order_id", orderID).Logger()

	err := w.process(ctx, orderID)
	if err != nil {
		log.Warn().Err(err).Msg("processAsync failed; leaving message for visibility-timeout redelivery")
		return
	}

	if err := w.queue.Delete(ctx, w.queueName, msg.ReceiptHandle); err != nil {
		log.Error().Err(err).Msg("failed to delete processed message; duplicate redelivery is possible but processAsync is idempotent")
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
