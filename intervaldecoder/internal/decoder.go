package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/obinnaokechukwu/ffgo/avcodec"
	"github.com/obinnaokechukwu/ffgo/avformat"
	"github.com/obinnaokechukwu/ffgo/avutil"

	"github.com/primkey7607/vdms/internal/avbsf"
)

// h264CodecID mirrors AV_CODEC_ID_H264 (27). See keyframeindex/internal
// for the same constant and the reasoning for keeping it local.
const h264CodecID = 27

const bsfName = "h264_mp4toannexb"

// decoder is the concrete implementation of intervaldecoder.Decoder.
type decoder struct {
	logger *slog.Logger

	fmtCtx      avformat.FormatContext
	videoStream int32
	codecCtx    avcodec.Context
	par         avcodec.Parameters
	bsfCtx      avbsf.BSFContext

	format ContainerFormat

	intervals IntervalMap

	initialized bool
}

// NewDecoder constructs a decoder (called by the public New() in the
// parent package).
func NewDecoder(logger *slog.Logger) *decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &decoder{logger: logger, videoStream: -1}
}

// Init opens the container, probes stream info, opens an H.264 decoder
// for the first video stream, classifies the stream as AVCC or Annex B,
// and always allocates and initializes an h264_mp4toannexb bitstream
// filter context (used only when the stream turns out to be AVCC).
func (d *decoder) Init(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrMissingFile)
	}

	fmtCtx := avformat.AllocContext()
	if err := avformat.OpenInput(&fmtCtx, path, nil, nil); err != nil {
		diagnose(d.logger, "avformat_open_input", err)
		return fmt.Errorf("%w: %s: %v", ErrOpenFailure, path, err)
	}

	if err := avformat.FindStreamInfo(fmtCtx, nil); err != nil {
		diagnose(d.logger, "avformat_find_stream_info", err)
		avformat.CloseInput(&fmtCtx)
		return fmt.Errorf("%w: %v", ErrProbeFailure, err)
	}

	streamIdx := avformat.FindBestStream(fmtCtx, avformat.MediaTypeVideo, -1, -1, nil, 0)
	if streamIdx < 0 {
		diagnose(d.logger, "av_find_best_stream", fmt.Errorf("status %d", streamIdx))
		avformat.CloseInput(&fmtCtx)
		return fmt.Errorf("%w: %s", ErrNoVideoStream, path)
	}

	stream := avformat.GetStream(fmtCtx, int(streamIdx))
	par := avformat.GetStreamCodecPar(stream)
	if int32(avformat.GetCodecParCodecID(par)) != h264CodecID {
		codecID := avformat.GetCodecParCodecID(par)
		diagnose(d.logger, "codec check", fmt.Errorf("codec id %v is not H.264", codecID))
		avformat.CloseInput(&fmtCtx)
		return fmt.Errorf("%w: codec id %v", ErrUnsupportedCodec, codecID)
	}

	codec := avcodec.FindDecoder(avcodec.CodecID(h264CodecID))
	if codec == nil {
		diagnose(d.logger, "avcodec_find_decoder", fmt.Errorf("no h264 decoder registered"))
		avformat.CloseInput(&fmtCtx)
		return fmt.Errorf("%w: no h264 decoder registered", ErrDecoderInitFailure)
	}

	codecCtx := avcodec.AllocContext3(codec)
	if codecCtx == nil {
		diagnose(d.logger, "avcodec_alloc_context3", fmt.Errorf("allocation failed"))
		avformat.CloseInput(&fmtCtx)
		return fmt.Errorf("%w: alloc context", ErrDecoderInitFailure)
	}

	if err := avcodec.ParametersToContext(codecCtx, par); err != nil {
		diagnose(d.logger, "avcodec_parameters_to_context", err)
		avcodec.FreeContext(&codecCtx)
		avformat.CloseInput(&fmtCtx)
		return fmt.Errorf("%w: %v", ErrDecoderInitFailure, err)
	}

	if err := avcodec.Open2(codecCtx, codec, nil); err != nil {
		diagnose(d.logger, "avcodec_open2", err)
		avcodec.FreeContext(&codecCtx)
		avformat.CloseInput(&fmtCtx)
		return fmt.Errorf("%w: %v", ErrDecoderInitFailure, err)
	}

	tbNum, tbDen := avformat.GetStreamTimeBase(stream)

	format := FormatAnnexB
	// AVCC (MP4-style) codec parameters carry a nonzero bit_rate field
	// populated by the mov/mp4 demuxer's stsd parsing; a raw Annex B
	// elementary stream has no such container metadata to derive it
	// from, so bit_rate reads zero. Heuristic, not a format inspection: a
	// raw stream that reports a bit rate, or an MP4 stream that does not,
	// is misclassified.
	if avbsf.CodecParBitRate(par) != 0 {
		format = FormatAVCC
	}

	filter, err := avbsf.GetByName(bsfName)
	if err != nil {
		diagnose(d.logger, "av_bsf_get_by_name", err)
		avcodec.FreeContext(&codecCtx)
		avformat.CloseInput(&fmtCtx)
		return fmt.Errorf("%w: %v", ErrBitstreamFilterInitFailure, err)
	}
	bsfCtx, err := avbsf.Alloc(filter)
	if err != nil {
		diagnose(d.logger, "av_bsf_alloc", err)
		avcodec.FreeContext(&codecCtx)
		avformat.CloseInput(&fmtCtx)
		return fmt.Errorf("%w: %v", ErrBitstreamFilterInitFailure, err)
	}
	if err := avbsf.CopyCodecParameters(avbsf.ParIn(bsfCtx), par); err != nil {
		diagnose(d.logger, "avcodec_parameters_copy", err)
		avbsf.Free(&bsfCtx)
		avcodec.FreeContext(&codecCtx)
		avformat.CloseInput(&fmtCtx)
		return fmt.Errorf("%w: %v", ErrBitstreamFilterInitFailure, err)
	}
	avbsf.SetTimeBaseIn(bsfCtx, tbNum, tbDen)
	if err := avbsf.Init(bsfCtx); err != nil {
		diagnose(d.logger, "av_bsf_init", err)
		avbsf.Free(&bsfCtx)
		avcodec.FreeContext(&codecCtx)
		avformat.CloseInput(&fmtCtx)
		return fmt.Errorf("%w: %v", ErrBitstreamFilterInitFailure, err)
	}

	d.fmtCtx = fmtCtx
	d.videoStream = streamIdx
	d.codecCtx = codecCtx
	d.par = par
	d.bsfCtx = bsfCtx
	d.format = format
	d.initialized = true

	avbsf.SetLogLevel(avbsf.LogLevelQuiet)

	d.logger.Debug("intervaldecoder: initialized", "path", path, "stream", streamIdx, "format", d.formatName())
	return nil
}

func (d *decoder) formatName() string {
	switch d.format {
	case FormatAVCC:
		return "avcc"
	case FormatAnnexB:
		return "annexb"
	default:
		return "unknown"
	}
}

// SetWanted builds and stores the IntervalMap for a later Decode call.
// Returns the wanted indices BuildIntervalMap could not place in any
// interval (their count is also logged here at Info), or ErrEmptyInput.
func (d *decoder) SetWanted(table KeyframeTable, wanted []uint64) ([]uint64, error) {
	im, dropped, err := BuildIntervalMap(table, wanted)
	if err != nil {
		return nil, err
	}
	d.intervals = im
	if len(dropped) > 0 {
		d.logger.Info("intervaldecoder: wanted frames unreachable from keyframe table", "count", len(dropped))
	}
	return dropped, nil
}

// Decode runs decodeInterval over every entry of the interval map built
// by SetWanted, in order, aggregating emitted frames in emission order.
// Any native error aborts the whole run: partial results are discarded
// rather than returned.
func (d *decoder) Decode() ([]DecodedFrame, error) {
	if !d.initialized {
		return nil, ErrNotInitialized
	}

	var out []DecodedFrame
	for _, entry := range d.intervals {
		frames, err := d.decodeInterval(entry.Interval, entry.Wanted)
		if err != nil {
			return nil, err
		}
		out = append(out, frames...)
	}
	return out, nil
}

// decodeInterval implements the per-interval state machine: ReadPacket
// -> [FilterSend -> FilterRecv]? -> DecoderSend -> DecoderRecv -> Emit?.
// FilterRecv's TryAgain and DecoderRecv's TryAgain/EndOfStream are the
// only statuses that re-enter ReadPacket without advancing idx; every
// other non-OK status is fatal.
func (d *decoder) decodeInterval(interval FrameInterval, wanted []uint64) ([]DecodedFrame, error) {
	wantSet := make(map[uint64]struct{}, len(wanted))
	for _, w := range wanted {
		wantSet[w] = struct{}{}
	}

	if err := d.seek(interval.Start); err != nil {
		return nil, err
	}
	avcodec.FlushBuffers(d.codecCtx)

	pkt := avcodec.PacketAlloc()
	defer avcodec.PacketFree(&pkt)
	filtered := avcodec.PacketAlloc()
	defer avcodec.PacketFree(&filtered)
	frame, err := avbsf.FrameAlloc()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	defer avbsf.FrameFree(&frame)

	var out []DecodedFrame
	idx := interval.Start.Idx

	for idx <= interval.End.Idx {
		// a. Read until a packet on the video stream.
		var readErr error
		for {
			readErr = avformat.ReadFrame(d.fmtCtx, pkt)
			if readErr != nil {
				break
			}
			if avcodec.GetPacketStreamIndex(pkt) == d.videoStream {
				break
			}
			avcodec.PacketUnref(pkt)
		}
		if readErr != nil {
			avcodec.PacketUnref(pkt)
			if avutil.IsEOF(readErr) {
				diagnose(d.logger, "av_read_frame", readErr)
				return nil, fmt.Errorf("%w: interval [%d,%d] at idx %d", ErrUnexpectedEOF, interval.Start.Idx, interval.End.Idx, idx)
			}
			diagnose(d.logger, "av_read_frame", readErr)
			return nil, fmt.Errorf("%w: read_frame: %v", ErrDecodeFailure, readErr)
		}

		// b. Bitstream filter for AVCC only.
		toSend := pkt
		if d.format != FormatAnnexB {
			if ret := avbsf.SendPacket(d.bsfCtx, pkt); ret < 0 {
				avcodec.PacketUnref(pkt)
				diagnose(d.logger, "av_bsf_send_packet", fmt.Errorf("status %d", ret))
				return nil, fmt.Errorf("%w: bsf send_packet: status %d", ErrDecodeFailure, ret)
			}
			avcodec.PacketUnref(pkt)

			ret := avbsf.ReceivePacket(d.bsfCtx, filtered)
			if ret == avbsf.AVERROR_EAGAIN {
				continue // restart without incrementing idx
			}
			if ret < 0 {
				diagnose(d.logger, "av_bsf_receive_packet", fmt.Errorf("status %d", ret))
				return nil, fmt.Errorf("%w: bsf receive_packet: status %d", ErrDecodeFailure, ret)
			}
			toSend = filtered
		}

		// c. Submit to the decoder.
		sendErr := avcodec.SendPacket(d.codecCtx, toSend)
		avcodec.PacketUnref(toSend)
		if sendErr != nil {
			diagnose(d.logger, "avcodec_send_packet", sendErr)
			return nil, fmt.Errorf("%w: send_packet: %v", ErrDecodeFailure, sendErr)
		}

		// d. Attempt to pull one decoded frame.
		recvErr := avcodec.ReceiveFrame(d.codecCtx, frame)
		if recvErr != nil {
			if avutil.IsAgain(recvErr) || avutil.IsEOF(recvErr) {
				continue // restart without incrementing idx
			}
			diagnose(d.logger, "avcodec_receive_frame", recvErr)
			return nil, fmt.Errorf("%w: receive_frame: %v", ErrDecodeFailure, recvErr)
		}

		// e. Emit if wanted.
		if _, want := wantSet[idx]; want {
			out = append(out, DecodedFrame{
				Idx:   idx,
				PTS:   avutil.GetFramePTS(frame),
				Frame: d.copyFrame(frame),
			})
		}
		avutil.FrameUnref(frame)

		// f. Advance.
		idx++
	}

	d.logger.Debug("intervaldecoder: interval decoded", "start", interval.Start.Idx, "end", interval.End.Idx, "emitted", len(out))
	return out, nil
}

// seek positions the demuxer at interval's start keyframe: frame-index
// seeking for AVCC (container-indexed), byte-offset seeking for Annex B
// (no index exists, so the captured packet offset is the only reliable
// entry point).
func (d *decoder) seek(start KeyFrame) error {
	var err error
	if d.format == FormatAVCC {
		err = avformat.SeekFrame(d.fmtCtx, d.videoStream, int64(start.Idx), avformat.SeekFlagFrame|avformat.SeekFlagBackward)
	} else {
		err = avformat.SeekFrame(d.fmtCtx, d.videoStream, start.Base, avformat.SeekFlagByte)
	}
	if err != nil {
		diagnose(d.logger, "av_seek_frame", err)
		return fmt.Errorf("%w: %v", ErrSeekFailure, err)
	}
	return nil
}

func (d *decoder) copyFrame(frame avutil.Frame) Frame {
	width := avcodec.GetCtxWidth(d.codecCtx)
	height := avcodec.GetCtxHeight(d.codecCtx)
	format := avcodec.GetCtxPixFmt(d.codecCtx)

	// 4:2:0 chroma subsampling, the overwhelmingly common case for H.264
	// (yuv420p / yuvj420p). A non-4:2:0 stream still decodes, but only
	// the top half of the rows of each of its chroma planes is copied.
	chromaH := (height + 1) / 2
	planeHeights := [3]int32{height, chromaH, chromaH}

	out := Frame{Width: width, Height: height, Format: format}
	for p := 0; p < 3; p++ {
		ls := avbsf.FrameLinesize(frame, p)
		if ls == 0 {
			break
		}
		out.Linesize = append(out.Linesize, ls)
		out.Planes = append(out.Planes, avbsf.FramePlane(frame, p, ls*planeHeights[p]))
	}
	return out
}

// Close releases the decoder, bitstream filter, and demuxer. Idempotent.
func (d *decoder) Close() error {
	if !d.initialized {
		return nil
	}
	avbsf.Free(&d.bsfCtx)
	avcodec.FreeContext(&d.codecCtx)
	avformat.CloseInput(&d.fmtCtx)
	d.initialized = false
	return nil
}

var stderr io.Writer = os.Stderr

func diagnose(logger *slog.Logger, context string, err error) {
	fmt.Fprintf(stderr, "*** %s: %v\n", context, err)
	fmt.Fprintln(stderr, "*** Key frame detection failed")
	logger.Error("intervaldecoder: native call failed", "context", context, "err", err)
}
