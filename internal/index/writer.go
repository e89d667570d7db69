package index

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/movies-etl/internal/document"
	"github.com/stacklok/movies-etl/internal/otel"
	"github.com/stacklok/movies-etl/internal/retry"
)

//go:generate mockgen -destination=mocks/mock_loader.go -package=mocks -source=writer.go Loader

const (
	// TracerName is the name used for the load tracer
	TracerName = "github.com/stacklok/movies-etl/index"

	// DefaultBatchSize is the number of documents per bulk request
	DefaultBatchSize = 100
)

// Loader publishes documents to one index
type Loader interface {
	// Index returns the name of the target index
	Index() string

	// EnsureIndex checks connectivity and creates the index when missing.
	// Only the first successful call does any work.
	EnsureIndex(ctx context.Context) error

	// Load publishes docs in batches and returns the number of documents
	// accepted. It stops at the first transform error or rejected document.
	Load(ctx context.Context, docs iter.Seq2[document.Document, error]) (int, error)
}

// options holds configuration options for the writer
type options struct {
	batchSize  int
	schemaFile string
	policy     *retry.Policy
	tracer     trace.Tracer
}

// Option is a functional option for configuring the writer
type Option func(*options) error

// WithBatchSize sets the number of documents per bulk request
func WithBatchSize(size int) Option {
	return func(o *options) error {
		if size <= 0 {
			return fmt.Errorf("batch size must be greater than zero, got %d", size)
		}
		o.batchSize = size
		return nil
	}
}

// WithSchemaFile sets the settings and mappings file used to create the index
func WithSchemaFile(path string) Option {
	return func(o *options) error {
		o.schemaFile = path
		return nil
	}
}

// WithRetryPolicy sets the policy applied to every cluster call
func WithRetryPolicy(p *retry.Policy) Option {
	return func(o *options) error {
		if p == nil {
			return fmt.Errorf("retry policy is required")
		}
		o.policy = p
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for the writer.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

type writer struct {
	client     Client
	index      string
	batchSize  int
	schemaFile string
	policy     *retry.Policy
	tracer     trace.Tracer

	mu      sync.Mutex
	ensured bool
}

// NewWriter creates a Loader publishing to the named index through client
func NewWriter(client Client, index string, opts ...Option) (Loader, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if index == "" {
		return nil, fmt.Errorf("index name is required")
	}

	o := &options{
		batchSize: DefaultBatchSize,
		policy:    retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	return &writer{
		client:     client,
		index:      index,
		batchSize:  o.batchSize,
		schemaFile: o.schemaFile,
		policy:     o.policy.WithClassifier(IsTransient),
		tracer:     o.tracer,
	}, nil
}

func (w *writer) Index() string {
	return w.index
}

func (w *writer) EnsureIndex(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ensured {
		return nil
	}

	ctx, span := otel.StartSpan(ctx, w.tracer, "index.EnsureIndex",
		trace.WithAttributes(otel.AttrIndexName.String(w.index)))
	defer span.End()

	if err := w.ensure(ctx); err != nil {
		otel.RecordError(span, err)
		return err
	}
	w.ensured = true
	return nil
}

func (w *writer) ensure(ctx context.Context) error {
	slog.InfoContext(ctx, "Connecting to Elasticsearch")
	_, err := retry.Do(ctx, w.policy, "index.ping", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.client.Ping(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	slog.InfoContext(ctx, "Connected to Elasticsearch")

	indices, err := retry.Do(ctx, w.policy, "index.list", w.client.ListIndices)
	if err != nil {
		return fmt.Errorf("failed to list indices: %w", err)
	}
	if slices.Contains(indices, w.index) {
		slog.DebugContext(ctx, "Index already exists", "index", w.index)
		return nil
	}

	mapping, err := LoadMapping(w.schemaFile)
	if err != nil {
		return err
	}
	if mapping == nil {
		slog.WarnContext(ctx, "Index not created, missing schema",
			"index", w.index,
			"schema_file", w.schemaFile)
		return nil
	}

	_, err = retry.Do(ctx, w.policy, "index.create", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.client.CreateIndex(ctx, w.index, mapping)
	})
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", w.index, err)
	}

	slog.InfoContext(ctx, "Index created", "index", w.index, "schema_file", w.schemaFile)
	return nil
}

func (w *writer) Load(ctx context.Context, docs iter.Seq2[document.Document, error]) (int, error) {
	ctx, span := otel.StartSpan(ctx, w.tracer, "index.Load",
		trace.WithAttributes(
			otel.AttrIndexName.String(w.index),
			otel.AttrBatchSize.Int(w.batchSize),
		))
	defer span.End()

	loaded, err := w.load(ctx, docs)
	span.SetAttributes(otel.AttrResultCount.Int(loaded))
	if err != nil {
		otel.RecordError(span, err)
		return loaded, err
	}
	return loaded, nil
}

func (w *writer) load(ctx context.Context, docs iter.Seq2[document.Document, error]) (int, error) {
	batch := make([]document.Document, 0, w.batchSize)
	loaded := 0

	for doc, err := range docs {
		if err != nil {
			return loaded, err
		}
		batch = append(batch, doc)
		if len(batch) < w.batchSize {
			continue
		}
		n, err := w.publish(ctx, batch)
		loaded += n
		if err != nil {
			return loaded, err
		}
		batch = make([]document.Document, 0, w.batchSize)
	}

	if len(batch) > 0 {
		n, err := w.publish(ctx, batch)
		loaded += n
		if err != nil {
			return loaded, err
		}
	}
	return loaded, nil
}

// publish sends one batch and fails when any document was rejected
func (w *writer) publish(ctx context.Context, batch []document.Document) (int, error) {
	result, err := retry.Do(ctx, w.policy, "index.bulk", func(ctx context.Context) (BulkResult, error) {
		return w.client.Bulk(ctx, w.index, batch)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to publish %d documents: %w", len(batch), err)
	}

	slog.InfoContext(ctx, "Transfer data",
		"index", w.index,
		"success", result.Succeeded,
		"failed", result.Failed)

	if result.Failed > 0 {
		err := fmt.Errorf("%w: %d of %d documents rejected", ErrPartialBulk, result.Failed, len(batch))
		if len(result.Errors) > 0 {
			first := result.Errors[0]
			err = fmt.Errorf("%w, first %s: %s %s", err, first.ID, first.Type, first.Reason)
		}
		return result.Succeeded, err
	}
	return result.Succeeded, nil
}
