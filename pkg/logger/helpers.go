package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogComponentStart logs when a long-running component starts
func LogComponentStart(log Logger, component string, config map[string]interface{}) {
	l := log.WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a long-running component stops
func LogComponentStop(log Logger, component string, reason string) {
	log.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogPoll logs the outcome of one poll cycle
func LogPoll(log Logger, silo, status string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"silo":     silo,
		"status":   status,
		"duration": duration,
	}

	switch {
	case err != nil:
		log.WithError(err).ErrorWithFields("Poll failed", fields)
	case status == "skipped":
		log.WarnWithFields("Poll skipped", fields)
	default:
		log.InfoWithFields("Poll completed", fields)
	}
}

// NewNopLogger creates a no-operation logger
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}

func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
