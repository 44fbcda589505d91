package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Recorder holds the business instruments. The zero value is not usable;
// Nop returns one that drops everything.
type Recorder struct {
	salesCreated     metric.Int64Counter
	salesAmount      metric.Int64Counter
	ledgerEntries    metric.Int64Counter
	recurringCreated metric.Int64Counter
	warnings         metric.Int64Counter
	requestLatency   metric.Float64Histogram
}

func New(provider metric.MeterProvider) (*Recorder, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter("gestorbrecho.backend")

	var (
		r   Recorder
		err error
	)

	r.salesCreated, err = meter.Int64Counter("sales.created",
		metric.WithDescription("Number of sales committed"),
		metric.WithUnit("{sale}"))
	if err != nil {
		return nil, fmt.Errorf("create sales.created counter: %w", err)
	}

	r.salesAmount, err = meter.Int64Counter("sales.amount",
		metric.WithDescription("Sum of committed sale totals"),
		metric.WithUnit("{cent}"))
	if err != nil {
		return nil, fmt.Errorf("create sales.amount counter: %w", err)
	}

	r.ledgerEntries, err = meter.Int64Counter("ledger.entries.posted",
		metric.WithDescription("Cash ledger entries written"),
		metric.WithUnit("{entry}"))
	if err != nil {
		return nil, fmt.Errorf("create ledger.entries.posted counter: %w", err)
	}

	r.recurringCreated, err = meter.Int64Counter("receivables.recurring.generated",
		metric.WithDescription("Receivables created by the recurring job"),
		metric.WithUnit("{receivable}"))
	if err != nil {
		return nil, fmt.Errorf("create receivables.recurring.generated counter: %w", err)
	}

	r.warnings, err = meter.Int64Counter("side_effects.warnings",
		metric.WithDescription("Best-effort side effects that failed after commit"),
		metric.WithUnit("{warning}"))
	if err != nil {
		return nil, fmt.Errorf("create side_effects.warnings counter: %w", err)
	}

	r.requestLatency, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create http.server.request.duration histogram: %w", err)
	}

	return &r, nil
}

func Nop() *Recorder {
	r, _ := New(noop.NewMeterProvider())
	return r
}

func (r *Recorder) SaleCreated(ctx context.Context, paymentMethod string, totalCents int64) {
	attrs := metric.WithAttributes(attribute.String("payment_method", paymentMethod))
	r.salesCreated.Add(ctx, 1, attrs)
	r.salesAmount.Add(ctx, totalCents, attrs)
}

func (r *Recorder) LedgerEntry(ctx context.Context, kind string) {
	r.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (r *Recorder) RecurringGenerated(ctx context.Context, n int) {
	if n > 0 {
		r.recurringCreated.Add(ctx, int64(n))
	}
}

func (r *Recorder) Warning(ctx context.Context, operation string) {
	r.warnings.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

func (r *Recorder) Request(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	r.requestLatency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", status),
	))
}
