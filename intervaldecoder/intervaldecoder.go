package intervaldecoder

import (
	"log/slog"

	"github.com/primkey7607/vdms/intervaldecoder/internal"
	"github.com/primkey7607/vdms/keyframeindex"
)

// Frame, DecodedFrame, FrameInterval, IntervalEntry, IntervalMap, and
// ContainerFormat are re-exported from the internal package to avoid
// import cycles. See internal/types.go and internal/intervalmap.go for
// the field-level contract.
type (
	Frame           = internal.Frame
	DecodedFrame    = internal.DecodedFrame
	FrameInterval   = internal.FrameInterval
	IntervalEntry   = internal.IntervalEntry
	IntervalMap     = internal.IntervalMap
	ContainerFormat = internal.ContainerFormat
)

// Container format classifications.
const (
	FormatUnknown = internal.FormatUnknown
	FormatAVCC    = internal.FormatAVCC
	FormatAnnexB  = internal.FormatAnnexB
)

// Error kinds, re-exported so callers can errors.Is against them.
var (
	ErrMissingFile                = internal.ErrMissingFile
	ErrOpenFailure                = internal.ErrOpenFailure
	ErrProbeFailure               = internal.ErrProbeFailure
	ErrNoVideoStream              = internal.ErrNoVideoStream
	ErrUnsupportedCodec           = internal.ErrUnsupportedCodec
	ErrDecoderInitFailure         = internal.ErrDecoderInitFailure
	ErrBitstreamFilterInitFailure = internal.ErrBitstreamFilterInitFailure
	ErrSeekFailure                = internal.ErrSeekFailure
	ErrUnexpectedEOF              = internal.ErrUnexpectedEOF
	ErrDecodeFailure              = internal.ErrDecodeFailure
	ErrNotInitialized             = internal.ErrNotInitialized
	ErrEmptyInput                 = internal.ErrEmptyInput
)

// Decoder decodes keyframe-bounded intervals of an H.264 container to
// satisfy a caller's set of wanted frame indices.
//
// Lifecycle: New() -> Init(path) -> SetWanted(table, wanted) ->
// Decode() -> Close(). A Decoder is owned by one caller at a time; it
// is not safe for concurrent use by multiple goroutines.
type Decoder interface {
	// Init opens the container, probes stream info, opens an H.264
	// decoder for the first video stream, classifies the stream as AVCC
	// or Annex B, and allocates the h264_mp4toannexb bitstream filter
	// context used for the AVCC case. Any native resources allocated
	// during a failed Init are released before returning.
	Init(path string) error

	// SetWanted partitions wanted into the minimal set of intervals
	// bounded by adjacent keyframes from table, for a later Decode
	// call. It returns the subset of wanted that no interval can reach
	// (below the first keyframe, or at/after the last one) rather than
	// silently dropping them; it is the caller's responsibility to log
	// or otherwise account for them. Returns ErrEmptyInput if table or
	// wanted is empty.
	SetWanted(table keyframeindex.KeyframeTable, wanted []uint64) (dropped []uint64, err error)

	// Decode runs every interval set by SetWanted, in order, and
	// returns every emitted frame in emission order. Any native error
	// aborts the whole run: partial results are discarded, not
	// returned, so a caller never acts on a truncated decode.
	Decode() ([]DecodedFrame, error)

	// Close releases native resources. Idempotent, and safe to call
	// after a failed Init.
	Close() error
}

// Option configures a Decoder constructed by New.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger overrides the default logger (slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates a Decoder with default configuration.
func New(opts ...Option) Decoder {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return internal.NewDecoder(o.logger)
}
