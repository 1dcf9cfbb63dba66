// Command worker runs the Async Order Worker (spec.md §4.5): it
// drains the processing queue and drives each order id through
// ProcessAsync under bounded parallelism.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/traffictacos/ticketing-core/internal/config"
	"github.com/traffictacos/ticketing-core/internal/inventory"
	"github.com/traffictacos/ticketing-core/internal/observability"
	"github.com/traffictacos/ticketing-core/internal/orchestrator"
	"github.com/traffictacos/ticketing-core/internal/seating"
	"github.com/traffictacos/ticketing-core/internal/store/dynamo"
	"github.com/traffictacos/ticketing-core/internal/store/sqsqueue"
	"github.com/traffictacos/ticketing-core/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := appconfig.Load()
	if err != nil {
		panic(err)
	}
	log := observability.NewLogger(cfg)

	if err := observability.InitTracer(cfg); err != nil {
		log.Warn().Err(err).Msg("tracer initialization failed, continuing without tracing")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load AWS config")
	}

	kv := dynamo.New(dynamodb.NewFromConfig(awsCfg))
	queue := sqsqueue.New(sqs.NewFromConfig(awsCfg))

	invEngine := inventory.New(kv, log, cfg.Inventory.OptimisticLockAttempts)
	seater := seating.New(kv, log,
		seating.WithMaxAttempts(cfg.Seat.MaxAssignmentAttempts),
		seating.WithMaxCandidateIterations(cfg.Seat.MaxCandidateIterations))
	orch := orchestrator.New(kv, queue, invEngine, seater, log,
		orchestrator.WithReservationTimeout(time.Duration(cfg.Reservation.TimeoutMinutes)*time.Minute),
		orchestrator.WithQueueName(cfg.Queue.ProcessingQueueName))

	w := worker.New(queue, orch.ProcessAsync, log, worker.Config{
		QueueName:            cfg.Queue.ProcessingQueueName,
		DeadLetterQueueName:  cfg.Queue.DeadLetterQueueName,
		PollBatchSize:        cfg.Worker.PollBatchSize,
		VisibilityTimeoutSec: cfg.Worker.VisibilityTimeoutSeconds,
		Parallelism:          cfg.Worker.Parallelism,
	})

	log.Info().Msg("order worker starting")
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		log.Warn().Err(err).Msg("order worker stopped")
	}
}
