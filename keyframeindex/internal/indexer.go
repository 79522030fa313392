// Package internal implements Indexer behind keyframeindex's public
// interface.
//
// This package is INTERNAL - clients MUST use the public API in the
// parent package. Reason: allows the demuxer binding layer to change
// without breaking callers.
package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/obinnaokechukwu/ffgo/avcodec"
	"github.com/obinnaokechukwu/ffgo/avformat"
	"github.com/obinnaokechukwu/ffgo/avutil"

	"github.com/primkey7607/vdms/internal/avbsf"
)

// h264CodecID mirrors AV_CODEC_ID_H264's enum value (27) from
// libavcodec/codec_id.h. Kept local rather than trusting an unconfirmed
// exported name from the binding package.
const h264CodecID = 27

// Error kinds. Re-exported by the parent package so callers can
// errors.Is against them without importing this package.
var (
	ErrMissingFile      = errors.New("keyframeindex: missing file")
	ErrOpenFailure      = errors.New("keyframeindex: open failure")
	ErrProbeFailure     = errors.New("keyframeindex: probe failure")
	ErrNoVideoStream    = errors.New("keyframeindex: no video stream")
	ErrUnsupportedCodec = errors.New("keyframeindex: unsupported codec")
	ErrReadFailure      = errors.New("keyframeindex: read failure")
)

// KeyFrame descriptor for one random-access point in the video stream.
type KeyFrame struct {
	Idx  uint64
	Base int64
	Len  int32
}

// KeyframeTable is the ordered result of one Parse() call.
type KeyframeTable []KeyFrame

// indexer is the concrete implementation of keyframeindex.Indexer.
type indexer struct {
	logger      *slog.Logger
	fmtCtx      avformat.FormatContext
	videoStream int32
	initialized bool
}

// NewIndexer constructs an indexer (called by the public New() in the
// parent package).
func NewIndexer(logger *slog.Logger) *indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &indexer{logger: logger, videoStream: -1}
}

// Init opens the container, probes stream info, and verifies the first
// video stream is H.264.
func (ix *indexer) Init(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrMissingFile)
	}

	fmtCtx := avformat.AllocContext()
	if err := avformat.OpenInput(&fmtCtx, path, nil, nil); err != nil {
		ix.diagnose("avformat_open_input", err)
		return fmt.Errorf("%w: %s: %v", ErrOpenFailure, path, err)
	}

	if err := avformat.FindStreamInfo(fmtCtx, nil); err != nil {
		ix.diagnose("avformat_find_stream_info", err)
		avformat.CloseInput(&fmtCtx)
		return fmt.Errorf("%w: %v", ErrProbeFailure, err)
	}

	streamIdx := avformat.FindBestStream(fmtCtx, avformat.MediaTypeVideo, -1, -1, nil, 0)
	if streamIdx < 0 {
		ix.diagnose("av_find_best_stream", fmt.Errorf("status %d", streamIdx))
		avformat.CloseInput(&fmtCtx)
		return fmt.Errorf("%w: no video stream in %s", ErrNoVideoStream, path)
	}

	stream := avformat.GetStream(fmtCtx, int(streamIdx))
	par := avformat.GetStreamCodecPar(stream)
	if int32(avformat.GetCodecParCodecID(par)) != h264CodecID {
		codecID := avformat.GetCodecParCodecID(par)
		ix.diagnose("codec check", fmt.Errorf("codec id %v is not H.264", codecID))
		avformat.CloseInput(&fmtCtx)
		return fmt.Errorf("%w: codec id %v", ErrUnsupportedCodec, codecID)
	}

	ix.fmtCtx = fmtCtx
	ix.videoStream = streamIdx
	ix.initialized = true

	// The bulk packet-read loop below is extremely noisy on legitimate
	// inputs otherwise; this mutates FFmpeg's process-wide log level.
	avbsf.SetLogLevel(avbsf.LogLevelQuiet)

	ix.logger.Debug("keyframeindex: initialized", "path", path, "stream", streamIdx)
	return nil
}

// Parse walks the file packet by packet, recording every packet whose
// keyframe flag is set on the chosen video stream.
func (ix *indexer) Parse() (KeyframeTable, error) {
	if !ix.initialized {
		return nil, fmt.Errorf("%w: Parse called before Init", ErrOpenFailure)
	}

	pkt := avcodec.PacketAlloc()
	defer avcodec.PacketFree(&pkt)

	var table KeyframeTable
	var frameIdx uint64

	for {
		if err := avformat.ReadFrame(ix.fmtCtx, pkt); err != nil {
			if avutil.IsEOF(err) {
				break
			}
			ix.diagnose("av_read_frame", err)
			return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
		}

		if avcodec.GetPacketStreamIndex(pkt) != ix.videoStream {
			avcodec.PacketUnref(pkt)
			continue
		}

		if avbsf.PacketIsKeyframe(pkt) {
			table = append(table, KeyFrame{
				Idx:  frameIdx,
				Base: avbsf.PacketPos(pkt),
				Len:  avcodec.GetPacketSize(pkt),
			})
		}
		frameIdx++

		avcodec.PacketUnref(pkt)
	}

	ix.logger.Debug("keyframeindex: parse complete", "packets", frameIdx, "keyframes", len(table))
	return table, nil
}

// Close releases the demuxer context. Idempotent.
func (ix *indexer) Close() error {
	if !ix.initialized {
		return nil
	}
	avformat.CloseInput(&ix.fmtCtx)
	ix.initialized = false
	return nil
}

var stderr io.Writer = os.Stderr

// diagnose writes the two-line FFmpeg-style diagnostic to stderr and
// mirrors it through the structured logger at Error level, so the
// failure is visible in daemon deployments where stderr is not
// inspected interactively.
func (ix *indexer) diagnose(context string, err error) {
	fmt.Fprintf(stderr, "*** %s: %v\n", context, err)
	fmt.Fprintln(stderr, "*** Key frame detection failed")
	ix.logger.Error("keyframeindex: native call failed", "context", context, "err", err)
}
