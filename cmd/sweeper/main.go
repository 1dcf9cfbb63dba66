// Command sweeper ticks the Reservation Sweeper (spec.md §4.4) on a
// configurable interval, expiring reservations past their deadline.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	appconfig "github.com/traffictacos/ticketing-core/internal/config"
	"github.com/traffictacos/ticketing-core/internal/inventory"
	"github.com/traffictacos/ticketing-core/internal/observability"
	"github.com/traffictacos/ticketing-core/internal/store/dynamo"
	"github.com/traffictacos/ticketing-core/internal/sweeper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := appconfig.Load()
	if err != nil {
		panic(err)
	}
	log := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if err := observability.InitTracer(cfg); err != nil {
		log.Warn().Err(err).Msg("tracer initialization failed, continuing without tracing")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load AWS config")
	}

	kv := dynamo.New(dynamodb.NewFromConfig(awsCfg))
	invEngine := inventory.New(kv, log, cfg.Inventory.OptimisticLockAttempts)
	sw := sweeper.New(kv, invEngine, log)

	interval := time.Duration(cfg.Reservation.CheckIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("reservation sweeper starting")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reservation sweeper shutting down")
			return
		case <-ticker.C:
			start := time.Now()
			count, err := sw.Sweep(ctx)
			if err != nil {
				log.Error().Err(err).Msg("sweep pass failed")
				continue
			}
			metrics.RecordSweep(count, time.Since(start))
			if count > 0 {
				log.Info().Int("expired", count).Msg("sweep pass expired reservations")
			}
		}
	}
}
