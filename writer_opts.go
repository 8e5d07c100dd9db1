package hpak

import (
	"log/slog"
	"runtime"

	"github.com/meigma/hpak/compression"
)

// writerConfig holds configuration for archive creation.
type writerConfig struct {
	metadataCompression compression.Algorithm
	defaultCompression  compression.Algorithm
	policy              compression.Policy
	alignment           uint64
	minify              bool
	spoolDir            string
	concurrency         int
	logger              *slog.Logger
	progress            ProgressFunc
}

func defaultWriterConfig() writerConfig {
	return writerConfig{
		metadataCompression: compression.Deflate,
		defaultCompression:  compression.Deflate,
		policy:              compression.DefaultPolicy(),
		alignment:           DefaultAlignment,
		minify:              true,
		concurrency:         runtime.GOMAXPROCS(0),
	}
}

// WriterOption configures a Writer.
type WriterOption func(*writerConfig)

// WithMetadataCompression sets the algorithm used for every metadata block.
// The default is compression.Deflate.
func WithMetadataCompression(alg compression.Algorithm) WriterOption {
	return func(cfg *writerConfig) {
		cfg.metadataCompression = alg
	}
}

// WithAlignment sets the boundary each (metadata, data) pair starts on.
// Zero and one disable padding. The default is DefaultAlignment.
func WithAlignment(n uint64) WriterOption {
	return func(cfg *writerConfig) {
		cfg.alignment = n
	}
}

// WithCompressionPolicy replaces the extension table used to pick a data
// block's algorithm. It discards earlier WithExtensionCompression calls.
func WithCompressionPolicy(p compression.Policy) WriterOption {
	return func(cfg *writerConfig) {
		cfg.policy = p.Clone()
	}
}

// WithExtensionCompression sets the algorithm for one file extension.
func WithExtensionCompression(ext string, alg compression.Algorithm) WriterOption {
	return func(cfg *writerConfig) {
		cfg.policy.Set(ext, alg)
	}
}

// WithDefaultCompression sets the algorithm for files whose extension the
// policy does not list. The default is compression.Deflate.
func WithDefaultCompression(alg compression.Algorithm) WriterOption {
	return func(cfg *writerConfig) {
		cfg.defaultCompression = alg
	}
}

// WithMinifyMetadata controls whether metadata is minified before it is
// compressed (default: true).
func WithMinifyMetadata(enabled bool) WriterOption {
	return func(cfg *writerConfig) {
		cfg.minify = enabled
	}
}

// WithSpoolDir sets the directory for the temporary spool file.
// Empty uses os.TempDir.
func WithSpoolDir(dir string) WriterOption {
	return func(cfg *writerConfig) {
		cfg.spoolDir = dir
	}
}

// WithConcurrency sets how many files AddPathsFromDir compresses in parallel.
// Values < 1 use GOMAXPROCS.
func WithConcurrency(n int) WriterOption {
	return func(cfg *writerConfig) {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}
		cfg.concurrency = n
	}
}

// WithLogger sets the logger for archive creation.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) WriterOption {
	return func(cfg *writerConfig) {
		cfg.logger = logger
	}
}

// WithProgress sets a callback to receive progress updates during creation.
func WithProgress(fn ProgressFunc) WriterOption {
	return func(cfg *writerConfig) {
		cfg.progress = fn
	}
}
