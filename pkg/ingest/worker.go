// Package ingest persists documents consumed from Kafka topics through a manager.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/segmentio/kafka-go"

	"github.com/aretw0/strata/pkg/core"
)

// Route sends the messages of topics matching Pattern to a repository.
type Route struct {
	Pattern    string `mapstructure:"pattern" yaml:"pattern"`
	Repository string `mapstructure:"repository" yaml:"repository"`
}

// Config holds the configuration of a Worker.
type Config struct {
	Brokers       []string
	GroupID       string
	Topics        []string
	Routes        []Route
	BatchSize     int
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// MessageReader is the part of *kafka.Reader the worker uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Worker consumes messages, persists them and commits the manager per batch.
// Kafka offsets are committed only after the manager commit succeeds.
type Worker struct {
	reader  MessageReader
	manager *core.Manager
	config  Config
	logger  *slog.Logger

	mu      sync.Mutex
	pending []kafka.Message
	stats   Stats
}

// Stats counts what the worker processed.
type Stats struct {
	Persisted int `json:"persisted"`
	Skipped   int `json:"skipped"`
	Batches   int `json:"batches"`
}

// NewWorker creates a worker reading from the configured brokers.
func NewWorker(manager *core.Manager, config Config) (*Worker, error) {
	if len(config.Brokers) == 0 || len(config.Topics) == 0 {
		return nil, errors.New("ingest requires brokers and topics")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		GroupID:     config.GroupID,
		GroupTopics: config.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
	})
	return NewWorkerWithReader(manager, reader, config)
}

// NewWorkerWithReader creates a worker on an existing reader.
func NewWorkerWithReader(manager *core.Manager, reader MessageReader, config Config) (*Worker, error) {
	if manager == nil {
		return nil, errors.New("manager is required")
	}
	if len(config.Routes) == 0 {
		return nil, errors.New("at least one route is required")
	}

	bundles := manager.BundlesMapping()
	for _, r := range config.Routes {
		if !doublestar.ValidatePattern(r.Pattern) {
			return nil, fmt.Errorf("invalid topic pattern %q", r.Pattern)
		}
		if _, ok := bundles[r.Repository]; !ok {
			return nil, &core.UndefinedRepositoryError{Type: r.Repository, Valid: bundles.Keys()}
		}
	}

	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{reader: reader, manager: manager, config: config, logger: logger}, nil
}

// route returns the repository of the first route matching topic.
func (w *Worker) route(topic string) (string, bool) {
	for _, r := range w.config.Routes {
		if ok, _ := doublestar.Match(r.Pattern, topic); ok {
			return r.Repository, true
		}
	}
	return "", false
}

// Run consumes until ctx is done, then commits what is pending and closes the reader.
func (w *Worker) Run(ctx context.Context) error {
	defer w.reader.Close()
	w.logger.Info("ingest started", "group", w.config.GroupID, "topics", w.config.Topics)

	deadline := time.Now().Add(w.config.FlushInterval)
	for {
		fetchCtx, cancel := context.WithDeadline(ctx, deadline)
		msg, err := w.reader.FetchMessage(fetchCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				// use a fresh context so the last batch still lands
				flushCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
				err := w.flush(flushCtx)
				stop()
				stats := w.Stats()
				w.logger.Info("ingest stopped", "persisted", stats.Persisted, "skipped", stats.Skipped)
				return err
			}
			if errors.Is(err, context.DeadlineExceeded) {
				if err := w.flush(ctx); err != nil {
					return err
				}
				deadline = time.Now().Add(w.config.FlushInterval)
				continue
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		w.handle(ctx, msg)
		if w.Pending() >= w.config.BatchSize {
			if err := w.flush(ctx); err != nil {
				return err
			}
			deadline = time.Now().Add(w.config.FlushInterval)
		}
	}
}

// handle persists one message. Bad messages are logged and skipped; their offset is still committed.
func (w *Worker) handle(ctx context.Context, msg kafka.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, msg)

	repo, ok := w.route(msg.Topic)
	if !ok {
		w.stats.Skipped++
		w.logger.Warn("no route for topic, skipping", "topic", msg.Topic, "offset", msg.Offset)
		return
	}

	desc := w.manager.BundlesMapping()[repo]
	doc, err := w.manager.Converter().ConvertToDocument(core.Hit{
		Type:       desc.Type,
		Repository: repo,
		ID:         string(msg.Key),
		Source:     msg.Value,
	})
	if err != nil {
		w.stats.Skipped++
		w.logger.Warn("bad message, skipping", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return
	}

	if err := w.manager.Persist(ctx, doc); err != nil {
		w.stats.Skipped++
		w.logger.Warn("persist failed, skipping", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return
	}
	w.stats.Persisted++
}

func (w *Worker) flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.manager.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	if err := w.reader.CommitMessages(ctx, w.pending...); err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}

	w.logger.Debug("batch committed", "messages", len(w.pending))
	w.pending = nil
	w.stats.Batches++
	return nil
}

// WorkerState exposes internal state for observability.
type WorkerState struct {
	Stats
	Pending int      `json:"pending"`
	Topics  []string `json:"topics"`
}

// Pending returns the number of messages waiting for the next batch commit.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stats returns the worker counters.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// State implements introspection.Introspectable.
func (w *Worker) State() any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerState{Stats: w.stats, Pending: len(w.pending), Topics: w.config.Topics}
}

// ComponentType implements introspection.Component.
func (w *Worker) ComponentType() string {
	return "kafka-ingest"
}

var _ introspection.Introspectable = (*Worker)(nil)
var _ introspection.Component = (*Worker)(nil)
