// Package besteffort runs operations whose failure is tolerated, logging
// instead of returning the error.
package besteffort

import "log/slog"

// Do runs fn and reports whether it succeeded. A failure is logged at WARN
// with what as the message.
func Do(log *slog.Logger, what string, fn func() error) bool {
	if err := fn(); err != nil {
		if log == nil {
			log = slog.Default()
		}
		log.Warn(what+" failed", "error", err)
		return false
	}
	return true
}
