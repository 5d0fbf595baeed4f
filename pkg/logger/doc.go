// Package logger provides the structured logging interface used across pmcharvest.
//
// It wraps zerolog. Loggers are constructed once by the command layer and passed
// down explicitly; there is no package-level instance.
//
//	log, err := logger.New(&cfg.Logging, os.Stderr)
//	runLog := log.WithField("run_id", runID)
//	runLog.InfoWithFields("Window complete", map[string]interface{}{
//	    "window":     "2016-01",
//	    "downloaded": 42,
//	})
//
// Tests use NewNopLogger or NewTestLogger, which records messages for assertions.
package logger
