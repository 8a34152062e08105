package observability

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/mealplanner/internal/storage"
)

// InstrumentedRepository wraps a storage.Repository with metrics, tracing, and anomaly detection.
type InstrumentedRepository[T any] struct {
	inner   storage.Repository[T]
	driver  string
	entity  string
	metrics *MetricsCollector
	tracer  trace.Tracer
	anomaly *AnomalyDetector
}

var _ storage.Repository[struct{}] = (*InstrumentedRepository[struct{}])(nil)

// NewInstrumentedRepository wraps a repository with observability.
// entity names the stored type in span names and anomaly keys, e.g. "recipe".
func NewInstrumentedRepository[T any](inner storage.Repository[T], driver, entity string, obs *Observability) *InstrumentedRepository[T] {
	r := &InstrumentedRepository[T]{
		inner:  inner,
		driver: driver,
		entity: entity,
	}
	if obs != nil {
		r.metrics = obs.Metrics
		r.anomaly = obs.Anomaly
		if obs.Tracer != nil {
			r.tracer = obs.Tracer.Tracer()
		}
	}
	return r
}

func (r *InstrumentedRepository[T]) GetAll(ctx context.Context) ([]T, error) {
	ctx, done := r.start(ctx, "get_all")
	items, err := r.inner.GetAll(ctx)
	done(err, attribute.Int("storage.items", len(items)))
	return items, err
}

func (r *InstrumentedRepository[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	ctx, done := r.start(ctx, "find_by_id", attribute.String("storage.id", id.String()))
	item, err := r.inner.FindByID(ctx, id)
	done(err)
	return item, err
}

func (r *InstrumentedRepository[T]) Save(ctx context.Context, entity *T) (*T, error) {
	ctx, done := r.start(ctx, "save")
	prior, err := r.inner.Save(ctx, entity)
	done(err, attribute.Bool("storage.replaced", prior != nil))
	return prior, err
}

func (r *InstrumentedRepository[T]) DeleteByID(ctx context.Context, id uuid.UUID) error {
	ctx, done := r.start(ctx, "delete_by_id", attribute.String("storage.id", id.String()))
	err := r.inner.DeleteByID(ctx, id)
	done(err)
	return err
}

// start opens a span and returns a completion func that records the outcome.
func (r *InstrumentedRepository[T]) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error, ...attribute.KeyValue)) {
	var span trace.Span
	if r.tracer != nil {
		ctx, span = r.tracer.Start(ctx, "storage."+r.entity+"."+op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(append(attrs,
				attribute.String("db.system", r.driver),
				attribute.String("db.operation", op),
			)...))
	}
	start := time.Now()

	return ctx, func(err error, extra ...attribute.KeyValue) {
		duration := time.Since(start).Seconds()
		status := storageStatus(err)

		if span != nil {
			span.SetAttributes(extra...)
			span.SetAttributes(attribute.String("storage.status", status))
			// Not-found is a normal answer, not a span failure.
			if err != nil && status != "not_found" {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}

		if r.metrics != nil {
			r.metrics.StorageOperationsTotal.WithLabelValues(r.driver, op, status).Inc()
			r.metrics.StorageOperationDuration.WithLabelValues(r.driver, op).Observe(duration)
		}

		if r.anomaly != nil {
			key := "storage_" + r.entity + "_" + op
			if err != nil && status != "not_found" {
				r.anomaly.RecordError(key)
			} else {
				r.anomaly.RecordSuccess(key)
			}
		}
	}
}

// storageStatus maps an error onto a low-cardinality metric label.
func storageStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, storage.ErrConflict):
		return "conflict"
	case errors.Is(err, storage.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func statusCode(code int) string {
	return strconv.Itoa(code)
}
