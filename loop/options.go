package loop

import (
	"io"
	"log/slog"
)

// Option configures a Host at construction time. Grounded on the teacher's
// functional-option pattern (manager_option.go's WithX helpers), generalized
// from the Manager's pool/retry knobs to the Host's own ambient concerns.
type Option func(*Host)

// WithLogger sets the Host's structured logger. Task lifecycle events
// (start and completion) are logged at Debug; nothing is logged by
// default.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
