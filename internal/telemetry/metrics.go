// Package telemetry holds the OpenTelemetry instruments recorded by the
// partitioning engine.
package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics are the instruments recorded once per partitioning pass.
type Metrics struct {
	Passes      metric.Int64Counter
	Tuples      metric.Int64Counter
	Duration    metric.Float64Histogram
	Overflows   metric.Int64Counter
	PinFailures metric.Int64Counter
}

// ScopeName is the instrumentation scope of every hashpart instrument.
const ScopeName = "hashpart"

// NewMetrics creates the instruments on a meter from mp, or from the global
// provider when mp is nil.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := mp.Meter(ScopeName)

	var (
		i   Metrics
		err error
	)
	i.Passes, err = m.Int64Counter(
		"hashpart.partition.passes",
		metric.WithDescription("Number of partitioning passes, by strategy and outcome"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric for passes: %w", err)
	}
	i.Tuples, err = m.Int64Counter(
		"hashpart.partition.tuples",
		metric.WithDescription("Number of tuples written to buckets"),
		metric.WithUnit("{tuple}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric for tuples: %w", err)
	}
	i.Duration, err = m.Float64Histogram(
		"hashpart.partition.duration",
		metric.WithDescription("Wall time of a partitioning pass including the final join"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric for duration: %w", err)
	}
	i.Overflows, err = m.Int64Counter(
		"hashpart.partition.overflows",
		metric.WithDescription("Passes aborted because a concurrent bucket ran out of capacity"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric for overflows: %w", err)
	}
	i.PinFailures, err = m.Int64Counter(
		"hashpart.affinity.pin_failures",
		metric.WithDescription("Workers whose CPU pin request was refused"),
		metric.WithUnit("{worker}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric for pin failures: %w", err)
	}
	return &i, nil
}

// StrategyAttrs returns the attribute set identifying a strategy and
// whether the pass succeeded.
func StrategyAttrs(strategy string, ok bool) metric.MeasurementOption {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	return metric.WithAttributeSet(attribute.NewSet(
		attribute.String("strategy", strategy),
		attribute.String("outcome", outcome),
	))
}
