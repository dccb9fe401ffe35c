// Package telemetry wires OpenTelemetry tracing and metrics for memoforge.
//
// Spans and pipeline counters are always recorded against the global otel
// providers. When telemetry is enabled, New installs SDK providers that
// export over OTLP (grpc or http) to a collector; when disabled the globals
// stay no-op and instrumentation costs next to nothing.
//
//	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
