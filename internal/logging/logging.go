// Package logging builds the structured zap logger shared by the tunnel
// engine and the HTTP route table: debug for diagnostics such as failed
// page fetches (benign tunnel teardown errors are not logged at all), warn
// and error for everything that should page someone, info for lifecycle
// events.
package logging

import "go.uber.org/zap"

// New builds a production zap logger and returns its SugaredLogger, which
// the tunnel engine and HTTP handlers use for key-value structured calls
// (Infow/Warnw/Errorw) rather than the strongly-typed zap.Field API.
func New() (*zap.SugaredLogger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// NewDevelopment builds a human-readable console logger, selected by the
// serve command's --dev flag for local runs outside a container (spec.md's
// ambient logging is unopinionated about encoding; this mirrors the
// teacher's plain log.Printf calls with structured fields instead of
// interpolated strings).
func NewDevelopment() (*zap.SugaredLogger, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
