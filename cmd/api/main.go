// Command api runs the thin HTTP adapter over the order lifecycle
// orchestrator: decode request, call the orchestrator, encode
// response. No business logic lives here (spec.md §1 scopes the
// RPC/HTTP surface out of the core; this is the minimal runnable
// wiring, grounded on the gin-gonic/gin adapter shape the example
// pack's ticketing services use).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"

	appconfig "github.com/traffictacos/ticketing-core/internal/config"
	"github.com/traffictacos/ticketing-core/internal/httpapi"
	"github.com/traffictacos/ticketing-core/internal/inventory"
	"github.com/traffictacos/ticketing-core/internal/observability"
	"github.com/traffictacos/ticketing-core/internal/orchestrator"
	"github.com/traffictacos/ticketing-core/internal/seating"
	"github.com/traffictacos/ticketing-core/internal/store/dynamo"
	"github.com/traffictacos/ticketing-core/internal/store/sqsqueue"
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
	metrics := observability.NewMetrics()
	go func() {
		if err := metrics.StartMetricsServer(cfg); err != nil {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

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

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(orch, invEngine, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http api stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http api shutdown did not complete cleanly")
	}
}
