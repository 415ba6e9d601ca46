// Package logger provides the structured logging interface used across sigmabot.
//
// It wraps zerolog with:
//   - leveled logging (Debug, Info, Warn, Error, Fatal)
//   - derived loggers carrying fields (WithField, WithFields, WithError)
//   - colored console output, optionally mirrored to a file
//   - a global logger for the CLI
//   - TestLogger and NewNopLogger for tests
//
// Usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.Component(logger.GetLogger(), "engage")
//	log.WithField("author", post.Author.Name).Info("Favorited post")
package logger
