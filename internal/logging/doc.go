// Package logging provides structured logging for splatpipe runs.
//
// It wraps Go's log/slog to write JSON lines, either to stderr or to a
// size-rotated file in a log directory. Child loggers carry persistent
// context so every entry of a pipeline run can be correlated afterwards.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/splatpipe", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLogger := logger.WithRun(runID)
//	runLogger.WithStage("reconstruct").Info("process exited", "duration_ms", 93211)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"process exited","run_id":"...","stage":"reconstruct","duration_ms":93211}
//
// # Log Rotation
//
// [RotatingWriter] renames the log to splatpipe.log.1 once it exceeds
// MaxSizeMB, shifting older backups up to MaxBackups. With Compress set,
// rotated files are gzipped to splatpipe.log.1.gz.
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewLoggerTo] with a bytes.Buffer to
// assert on emitted entries.
package logging
