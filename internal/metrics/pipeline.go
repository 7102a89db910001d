package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics defines the instruments for the registration completion
// pipeline: outbox publishing, task consumption, step execution, and timeout
// recovery. All implementations must be safe for concurrent use.
type PipelineMetrics interface {
	// RecordOutboxResult records an outbox publish attempt result.
	// Result examples: "published", "retried", "dead_lettered".
	RecordOutboxResult(ctx context.Context, result string)

	// RecordTaskOutcome records how a consumed task message resolved.
	// Outcome examples: "completed", "failed", "requeued", "dropped".
	RecordTaskOutcome(ctx context.Context, outcome string)

	// RecordStepDuration records the duration of one generation step.
	RecordStepDuration(ctx context.Context, step string, duration time.Duration, status string)

	// RecordTimeoutRecovery records a timeout scanner decision.
	// Outcome examples: "requeued", "failed".
	RecordTimeoutRecovery(ctx context.Context, outcome string)
}

// pipelineMetrics implements PipelineMetrics using OpenTelemetry metrics.
type pipelineMetrics struct {
	outboxCounter   metric.Int64Counter
	taskCounter     metric.Int64Counter
	stepHisto       metric.Float64Histogram
	recoveryCounter metric.Int64Counter
}

// NewPipelineMetrics creates a PipelineMetrics implementation using the provided
// meter provider. The namespace parameter prefixes all metric names.
func NewPipelineMetrics(meterProvider metric.MeterProvider, namespace string) (PipelineMetrics, error) {
	meter := meterProvider.Meter(namespace)

	outboxCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_outbox_publish_total", namespace),
		metric.WithDescription("Total outbox publish attempts by result"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox counter: %w", err)
	}

	taskCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_tasks_total", namespace),
		metric.WithDescription("Total consumed registration tasks by outcome"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task counter: %w", err)
	}

	stepHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_step_duration_seconds", namespace),
		metric.WithDescription("Duration of generation steps in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create step histogram: %w", err)
	}

	recoveryCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_timeout_recoveries_total", namespace),
		metric.WithDescription("Total timeout scanner recoveries by outcome"),
		metric.WithUnit("{application}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create recovery counter: %w", err)
	}

	return &pipelineMetrics{
		outboxCounter:   outboxCounter,
		taskCounter:     taskCounter,
		stepHisto:       stepHisto,
		recoveryCounter: recoveryCounter,
	}, nil
}

// RecordOutboxResult increments the outbox publish counter with a result label.
func (m *pipelineMetrics) RecordOutboxResult(ctx context.Context, result string) {
	m.outboxCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordTaskOutcome increments the task counter with an outcome label.
func (m *pipelineMetrics) RecordTaskOutcome(ctx context.Context, outcome string) {
	m.taskCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordStepDuration records the step duration in seconds with step and status labels.
func (m *pipelineMetrics) RecordStepDuration(
	ctx context.Context,
	step string,
	duration time.Duration,
	status string,
) {
	m.stepHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("step", step),
			attribute.String("status", status),
		),
	)
}

// RecordTimeoutRecovery increments the recovery counter with an outcome label.
func (m *pipelineMetrics) RecordTimeoutRecovery(ctx context.Context, outcome string) {
	m.recoveryCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}
