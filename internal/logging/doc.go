// Package logging provides structured logging for memoforge.
//
// The Logger wraps Zap and adds:
//   - a Trace level (-2, below Debug)
//   - fan-out to stdout, OpenTelemetry and an in-memory ring buffer
//   - correlation fields pulled from the context (trace, user, request, memo)
//   - secret redaction at the encoder
//   - level-aware sampling (errors are never sampled)
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, otelProvider)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, requestID)
//	logger.Info(ctx, "memo generated", zap.Int("sections", n))
//
// # Diagnostics buffer
//
// When Output.Buffer is positive, the most recent entries are retained in a
// RingBuffer (oldest evicted first). Logger.Buffer exposes it so the HTTP
// layer can serve recent entries without a log backend.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	svc := NewService(tl.Logger)
//	tl.AssertLogged(t, zapcore.WarnLevel, "retrying")
package logging
