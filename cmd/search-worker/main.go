// Command search-worker consumes CDC events from the users-changes topic
// and indexes them into a Meilisearch-compatible search engine, routing
// permanent failures to a dead-letter topic. See SPEC_FULL.md.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"go.uber.org/zap"

	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/config"
	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/dlq"
	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/logging"
	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/metrics"
	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/processor"
	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/search"
	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/worker"
)

const consumerName = "search-worker-users"

func main() {
	configPath := flag.String("config", "config.toml", "path to the worker's TOML config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	if err := run(*configPath, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(logLevel)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	rec := metrics.NewPrometheus()

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Kafka.Brokers...),
		kgo.ConsumerGroup(cfg.Kafka.GroupID),
		kgo.ConsumeTopics(cfg.Topics.SearchUsersChanges),
		kgo.DisableAutoCommit(),
		kgo.WithLogger(logging.NewKgoLogger(log)),
		kgo.ProducerBatchCompression(kgo.SnappyCompression(), kgo.NoCompression()),
	}
	if cfg.Kafka.SASLUsername != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.Kafka.SASLUsername,
			Pass: cfg.Kafka.SASLPassword,
		}.AsMechanism()))
	}

	consumerClient, err := kgo.NewClient(opts...)
	if err != nil {
		return fmt.Errorf("building consumer client: %w", err)
	}
	defer consumerClient.Close()

	dlqProducer, err := kgo.NewClient(kgo.SeedBrokers(cfg.Kafka.Brokers...), kgo.WithLogger(logging.NewKgoLogger(log)),
		kgo.ProducerBatchCompression(kgo.SnappyCompression(), kgo.NoCompression()))
	if err != nil {
		return fmt.Errorf("building DLQ producer client: %w", err)
	}
	defer dlqProducer.Close()

	searchClient := search.New(cfg.Search.Endpoints[0], cfg.Search.APIKey, cfg.Worker.PollInterval, cfg.Worker.PollTimeout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := searchClient.EnsureIndexes(ctx, cfg.Search.IndexUsernames, cfg.Search.IndexUsernamesDLQ, "id"); err != nil {
		return fmt.Errorf("bootstrapping search indexes: %w", err)
	}

	pool := worker.NewPool(cfg.Worker.MaxConcurrentTasks)
	proc := processor.New(searchClient, cfg.Search.IndexUsernames, log, rec)
	router := dlq.New(dlqProducer, log, rec, cfg.Worker.DLQPublishTimeout)

	// The consumer/topic directory is built once, here, and never mutated
	// again: a commit can only ever be issued through the consumer actually
	// subscribed to that topic.
	topicToConsumer := map[string]string{cfg.Topics.SearchUsersChanges: consumerName}
	committers := map[string]worker.Committer{
		consumerName: worker.KgoCommitter{Client: consumerClient},
	}
	offsets := worker.NewOffsetCoordinator(topicToConsumer, committers, log)

	cons := worker.NewConsumer(consumerName, cfg.Topics.SearchUsersChanges, cfg.Topics.SearchUsersChangesDLQ,
		consumerClient, pool, proc, router, offsets, log, rec)

	ctrl := worker.NewController([]*worker.Consumer{cons}, pool, offsets, log, worker.ControllerConfig{
		CommitInterval: cfg.Worker.CommitInterval,
		DrainDeadline:  cfg.Worker.DrainDeadline,
		DrainPoll:      500 * time.Millisecond,
	})

	log.Info("search-worker starting",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Topics.SearchUsersChanges))

	ctrl.Run(ctx)

	log.Info("context canceled, shutting down")
	ctrl.Shutdown(context.Background())

	return nil
}
