package api

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes attached to oops errors raised by plugins and the host
const (
	CodeUninitialized   = "PLUGIN_UNINITIALIZED"
	CodeDisposed        = "PLUGIN_DISPOSED"
	CodeInvalidMeta     = "PLUGIN_INVALID_META"
	CodeInvalidHost     = "PLUGIN_INVALID_HOST"
	CodeDuplicate       = "PLUGIN_DUPLICATE"
	CodeNotFound        = "PLUGIN_NOT_FOUND"
	CodeNotOrchestrator = "PLUGIN_NOT_ORCHESTRATOR"
	CodeDependencyCycle = "PLUGIN_DEPENDENCY_CYCLE"
	CodeIncomplete      = "ORCHESTRATOR_INCOMPLETE"
	CodeInvalidSignal   = "SIGNAL_INVALID"
)

// Sentinel errors wrapped by the coded errors above
var (
	// ErrUninitialized is returned when a host-dependent operation runs
	// before Initialize bound a host reference.
	ErrUninitialized = errors.New("plugin requires initialization before use")

	// ErrDisposed is returned when a disposed plugin is used
	ErrDisposed = errors.New("plugin is disposed")

	// ErrInvalidMeta is returned when plugin metadata breaks an invariant
	ErrInvalidMeta = errors.New("invalid plugin metadata")

	// ErrInvalidHost is returned when Initialize receives no host
	ErrInvalidHost = errors.New("host api is nil")

	// ErrInvalidSignal is returned when a signal cannot be emitted
	ErrInvalidSignal = errors.New("invalid signal")

	// ErrIncomplete is returned by orchestrators missing a required plugin
	ErrIncomplete = errors.New("orchestrator is missing a required plugin")
)

// LogError logs an error with structured context if it's an oops error
func LogError(logger Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		args := []interface{}{"error", oopsErr.Error()}
		if code := oopsErr.Code(); code != nil {
			args = append(args, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			args = append(args, "context", ctx)
		}
		logger.Error(msg, args...)
		return
	}
	logger.Error(msg, "error", err)
}
