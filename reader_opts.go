package hpak

import "log/slog"

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithReaderLogger sets the logger for a Reader.
// If not set, logging is disabled.
func WithReaderLogger(logger *slog.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithMaxEntrySize limits the decoded size of a single metadata or data
// block returned by ReadMetadata and ReadData. Set limit to 0 to disable
// the limit. The default is DefaultMaxEntrySize.
func WithMaxEntrySize(limit uint64) ReaderOption {
	return func(r *Reader) {
		r.maxEntrySize = limit
	}
}
