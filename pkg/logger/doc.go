// Package logger provides structured logging for coinclicker.
//
// It wraps zerolog behind a small Logger interface so components can take a
// logger by injection and tests can swap in TestLogger or NewNopLogger.
//
//	logger.Initialize(&cfg.Logging)
//	logger.WithField("username", name).Info("Signed in")
//
// Console output is written to stderr; when a log file is configured the
// output is JSON lines appended to that file.
package logger
