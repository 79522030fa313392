package keyframeindex

import (
	"log/slog"

	"github.com/primkey7607/vdms/keyframeindex/internal"
)

// KeyFrame is re-exported from the internal package to avoid import
// cycles. See internal/indexer.go for the field-level contract.
type KeyFrame = internal.KeyFrame

// KeyframeTable is re-exported from the internal package.
type KeyframeTable = internal.KeyframeTable

// Error kinds, re-exported so callers can errors.Is against them.
var (
	ErrMissingFile      = internal.ErrMissingFile
	ErrOpenFailure      = internal.ErrOpenFailure
	ErrProbeFailure     = internal.ErrProbeFailure
	ErrNoVideoStream    = internal.ErrNoVideoStream
	ErrUnsupportedCodec = internal.ErrUnsupportedCodec
	ErrReadFailure      = internal.ErrReadFailure
)

// Indexer scans a container's video stream and reports keyframe
// positions without decoding any sample.
//
// Lifecycle: New() -> Init(path) -> Parse() -> Close(). An Indexer is
// owned by one caller at a time; it is not safe for concurrent use by
// multiple goroutines.
type Indexer interface {
	// Init opens the container, probes stream info, and verifies the
	// first video stream is H.264. Any native resources allocated
	// during a failed Init are released before returning.
	Init(path string) error

	// Parse walks the file packet by packet and returns the keyframe
	// table. May be called at most once productively per Init: Parse
	// does not rewind, so a second call starts at end of file and
	// returns an empty table.
	Parse() (KeyframeTable, error)

	// Close releases native resources. Idempotent, and safe to call
	// after a failed Init.
	Close() error
}

// Option configures an Indexer constructed by New.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger overrides the default logger (slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates an Indexer with default configuration.
func New(opts ...Option) Indexer {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return internal.NewIndexer(o.logger)
}
