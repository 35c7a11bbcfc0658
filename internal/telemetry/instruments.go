package telemetry

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
)

// Instruments holds the domain-specific instruments engine records against.
// Created once at startup and threaded into internal/engine; every method is
// safe to call on a zero-value Instruments built with noop providers, since
// Init returns no-op global providers when OTEL is disabled.
type Instruments struct {
	CounselLatency  metric.Float64Histogram
	ArmPulls        metric.Int64Counter
	PartialResults  metric.Int64Counter
}

// NewInstruments creates the counsel-latency histogram, arm-pull counter,
// and partial-result counter under the "oraculum.decision-engine" meter
// scope returned by EngineMeter.
func NewInstruments() Instruments {
	meter := EngineMeter()

	latency, err := meter.Float64Histogram("oraculum.counsel.latency_ms",
		metric.WithDescription("counsel() end-to-end latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		slog.Warn("telemetry: create counsel latency histogram failed", "error", err)
	}

	pulls, err := meter.Int64Counter("oraculum.arm.pulls",
		metric.WithDescription("number of Thompson-sampling arm draws, by principle"),
	)
	if err != nil {
		slog.Warn("telemetry: create arm pulls counter failed", "error", err)
	}

	partial, err := meter.Int64Counter("oraculum.counsel.partial_results",
		metric.WithDescription("number of counsel responses returned with partial=true"),
	)
	if err != nil {
		slog.Warn("telemetry: create partial results counter failed", "error", err)
	}

	return Instruments{CounselLatency: latency, ArmPulls: pulls, PartialResults: partial}
}
