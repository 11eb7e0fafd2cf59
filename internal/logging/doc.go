// Package logging builds the process logger: a *slog.Logger whose records
// are encoded by zap, written to stdout, stderr, or a size-rotated file.
package logging
