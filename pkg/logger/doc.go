// Package logger provides a structured logging interface for the engagement
// collector.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output with colors
// - Optional file output
// - Context support for request tracing
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "xengage/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File: "/var/log/xengage.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	logger.Info("Collection started")
//	logger.WithField("post_id", "1836362553").Info("Fetching likes")
//	logger.WithError(err).Error("Page fetch failed")
//
// Advanced Usage:
//
//	// Create a logger instance with fields
//	log := logger.GetLogger().
//	    WithField("component", "pager").
//	    WithField("resource", "replies")
//
//	// Use structured logging
//	log.InfoWithFields("Pagination finished", map[string]interface{}{
//	    "pages":   4,
//	    "records": 312,
//	    "elapsed": time.Second * 171,
//	})
package logger
