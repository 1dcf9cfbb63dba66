// Package config loads the ticket lifecycle engine's configuration
// (spec.md §6) via viper, with .env support for local development the
// way the rest of the example pack wires it. Every recognized option
// has a documented default so the engine runs unconfigured in tests
// and dev environments alike.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every recognized option from spec.md §6, grouped by
// the subsystem that consumes it.
type Config struct {
	Server        ServerConfig
	AWS           AWSConfig
	Store         StoreConfig
	Queue         QueueConfig
	Reservation   ReservationConfig
	Seat          SeatConfig
	Inventory     InventoryConfig
	Worker        WorkerConfig
	Observability ObservabilityConfig
}

// ServerConfig holds the thin HTTP adapter's listen settings.
type ServerConfig struct {
	Port    int
	Timeout time.Duration
}

// AWSConfig holds the region/profile used by every AWS SDK client.
type AWSConfig struct {
	Region  string
	Profile string
}

// StoreConfig names the DynamoDB tables the KVStore adapter targets
// (spec.md §6 table list).
type StoreConfig struct {
	TableEvents          string
	TableOrders          string
	TableInventory       string
	TableReservations    string
	TableTicketItems     string
	TableSeatReservations string
	TableCustomerInfo    string
	TableAudit           string
	RequestTimeout       time.Duration
}

// QueueConfig names the SQS queue and dead-letter queue the async
// order worker consumes from (spec.md §6, "A dead-letter queue must
// be configurable for failure redirection").
type QueueConfig struct {
	ProcessingQueueName   string
	DeadLetterQueueName   string
}

// ReservationConfig controls reservation lifetime and the sweeper's
// cadence (spec.md §6 `reservation.*`).
type ReservationConfig struct {
	TimeoutMinutes    int
	CheckIntervalMS   int
}

// SeatConfig controls the seat-assignment protocol's retry and
// candidate-scan bounds (spec.md §6 `seat.*`).
type SeatConfig struct {
	MaxAssignmentAttempts   int
	MaxCandidateIterations  int
}

// InventoryConfig controls the Inventory Engine's optimistic-lock
// retry bound (spec.md §6 `inventory.optimistic_lock_attempts`).
type InventoryConfig struct {
	OptimisticLockAttempts int
}

// WorkerConfig controls the async order worker's poll/parallelism
// (spec.md §6 `worker.*`).
type WorkerConfig struct {
	PollBatchSize            int
	VisibilityTimeoutSeconds int
	Parallelism              int
}

// ObservabilityConfig controls logging, tracing, and metrics export.
type ObservabilityConfig struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
	LogLevel       string
	MetricsPort    int
}

// Load reads configuration from the environment (optionally seeded by
// a .env file in the working directory) with the defaults set below,
// the same viper + godotenv pairing the example pack's
// ticketing services use for local-dev ergonomics.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout", 5*time.Second)

	v.SetDefault("aws.region", "ap-northeast-2")
	v.SetDefault("aws.profile", "")

	v.SetDefault("store.table_events", "Events")
	v.SetDefault("store.table_orders", "TicketOrders")
	v.SetDefault("store.table_inventory", "TicketInventory")
	v.SetDefault("store.table_reservations", "TicketReservations")
	v.SetDefault("store.table_ticket_items", "TicketItems")
	v.SetDefault("store.table_seat_reservations", "SeatReservations")
	v.SetDefault("store.table_customer_info", "CustomerInfo")
	v.SetDefault("store.table_audit", "TicketStateTransitionAudit")
	v.SetDefault("store.request_timeout", 2*time.Second)

	v.SetDefault("queue.processing_queue_name", "order-processing")
	v.SetDefault("queue.dead_letter_queue_name", "order-processing-dlq")

	v.SetDefault("reservation.timeout_minutes", 10)
	v.SetDefault("reservation.check_interval_ms", 60000)

	v.SetDefault("seat.max_assignment_attempts", 3)
	v.SetDefault("seat.max_candidate_iterations", 10000)

	v.SetDefault("inventory.optimistic_lock_attempts", 3)

	v.SetDefault("worker.poll_batch_size", 10)
	v.SetDefault("worker.visibility_timeout_seconds", 30)
	v.SetDefault("worker.parallelism", 4)

	v.SetDefault("observability.service_name", "ticketing-core")
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("observability.otlp_endpoint", "http://otel-collector:4317")
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.metrics_port", 9090)

	cfg := &Config{
		Server: ServerConfig{
			Port:    v.GetInt("server.port"),
			Timeout: v.GetDuration("server.timeout"),
		},
		AWS: AWSConfig{
			Region:  v.GetString("aws.region"),
			Profile: v.GetString("aws.profile"),
		},
		Store: StoreConfig{
			TableEvents:           v.GetString("store.table_events"),
			TableOrders:           v.GetString("store.table_orders"),
			TableInventory:        v.GetString("store.table_inventory"),
			TableReservations:     v.GetString("store.table_reservations"),
			TableTicketItems:      v.GetString("store.table_ticket_items"),
			TableSeatReservations: v.GetString("store.table_seat_reservations"),
			TableCustomerInfo:     v.GetString("store.table_customer_info"),
			TableAudit:            v.GetString("store.table_audit"),
			RequestTimeout:        v.GetDuration("store.request_timeout"),
		},
		Queue: QueueConfig{
			ProcessingQueueName: v.GetString("queue.processing_queue_name"),
			DeadLetterQueueName: v.GetString("queue.dead_letter_queue_name"),
		},
		Reservation: ReservationConfig{
			TimeoutMinutes:  v.GetInt("reservation.timeout_minutes"),
			CheckIntervalMS: v.GetInt("reservation.check_interval_ms"),
		},
		Seat: SeatConfig{
			MaxAssignmentAttempts:  v.GetInt("seat.max_assignment_attempts"),
			MaxCandidateIterations: v.GetInt("seat.max_candidate_iterations"),
		},
		Inventory: InventoryConfig{
			OptimisticLockAttempts: v.GetInt("inventory.optimistic_lock_attempts"),
		},
		Worker: WorkerConfig{
			PollBatchSize:            v.GetInt("worker.poll_batch_size"),
			VisibilityTimeoutSeconds: v.GetInt("worker.visibility_timeout_seconds"),
			Parallelism:              v.GetInt("worker.parallelism"),
		},
		Observability: ObservabilityConfig{
			ServiceName:    v.GetString("observability.service_name"),
			ServiceVersion: v.GetString("observability.service_version"),
			OTLPEndpoint:   v.GetString("observability.otlp_endpoint"),
			LogLevel:       v.GetString("observability.log_level"),
			MetricsPort:    v.GetInt("observability.metrics_port"),
		},
	}
	return cfg, nil
}
