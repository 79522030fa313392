//go:build !ios && !android && (amd64 || arm64)

// Package avbsf fills the gaps left by ffgo's avformat/avcodec bindings:
// bitstream filter control (av_bsf_*, entirely absent from ffgo), the
// process-wide log level setter, and the handful of AVPacket /
// AVCodecParameters struct fields ffgo exposes no accessor for (packet
// byte position, packet keyframe flag, codec parameter bit rate), plus
// avcodec_parameters_copy and AVFrame allocation, freeing and
// data/linesize access. The
// EAGAIN/EOF/fatal distinction on the decode loop's own read/send/receive
// calls is handled through ffgo's avutil.IsAgain/avutil.IsEOF instead of
// duplicated here.
//
// It follows the same purego dlopen/offsetof binding style as the rest
// of the ffgo pack rather than introducing cgo.
package avbsf

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Well-known FFmpeg status codes. Both are negative on all platforms this
// package builds for (amd64/arm64 POSIX); AVERROR_EAGAIN is -EAGAIN and
// AVERROR_EOF is the negated four-character code 'EOF '.
const (
	AVERROR_EAGAIN int32 = -11
	AVERROR_EOF    int32 = -541478725
)

// AV_PKT_FLAG_KEY marks a packet carrying a keyframe (IDR) access unit.
const AV_PKT_FLAG_KEY int32 = 0x0001

// BSFContext is an opaque AVBSFContext pointer.
type BSFContext = unsafe.Pointer

// BSF is an opaque AVBitStreamFilter pointer.
type BSF = unsafe.Pointer

var (
	libAVCodec  uintptr
	libAVUtil   uintptr
	libAVFormat uintptr

	avBSFGetByName        func(name string) BSF
	avBSFAlloc            func(filter BSF, ctx *BSFContext) int32
	avBSFInit             func(ctx BSFContext) int32
	avBSFSendPacket       func(ctx BSFContext, pkt unsafe.Pointer) int32
	avBSFReceivePacket    func(ctx BSFContext, pkt unsafe.Pointer) int32
	avBSFFree             func(ctx *BSFContext)
	avCodecParametersCopy func(dst, src unsafe.Pointer) int32
	avLogSetLevel         func(level int32)
	avFrameAlloc          func() unsafe.Pointer
	avFrameFree           func(f *unsafe.Pointer)

	loadOnce sync.Once
	loadErr  error
)

// ErrNotLoaded is returned when the native libraries could not be opened,
// e.g. FFmpeg is not installed on the host.
var ErrNotLoaded = errors.New("avbsf: libavcodec/libavutil not loaded")

func load() error {
	loadOnce.Do(func() {
		var err error
		libAVCodec, err = openFirst("libavcodec.so.60", "libavcodec.so.59", "libavcodec.so")
		if err != nil {
			loadErr = fmt.Errorf("%w: open libavcodec: %v", ErrNotLoaded, err)
			return
		}
		libAVUtil, err = openFirst("libavutil.so.58", "libavutil.so.57", "libavutil.so")
		if err != nil {
			loadErr = fmt.Errorf("%w: open libavutil: %v", ErrNotLoaded, err)
			return
		}
		libAVFormat, err = openFirst("libavformat.so.60", "libavformat.so.59", "libavformat.so")
		if err != nil {
			loadErr = fmt.Errorf("%w: open libavformat: %v", ErrNotLoaded, err)
			return
		}

		purego.RegisterLibFunc(&avBSFGetByName, libAVCodec, "av_bsf_get_by_name")
		purego.RegisterLibFunc(&avBSFAlloc, libAVCodec, "av_bsf_alloc")
		purego.RegisterLibFunc(&avBSFInit, libAVCodec, "av_bsf_init")
		purego.RegisterLibFunc(&avBSFSendPacket, libAVCodec, "av_bsf_send_packet")
		purego.RegisterLibFunc(&avBSFReceivePacket, libAVCodec, "av_bsf_receive_packet")
		purego.RegisterLibFunc(&avBSFFree, libAVCodec, "av_bsf_free")
		purego.RegisterLibFunc(&avCodecParametersCopy, libAVCodec, "avcodec_parameters_copy")
		purego.RegisterLibFunc(&avLogSetLevel, libAVUtil, "av_log_set_level")
		purego.RegisterLibFunc(&avFrameAlloc, libAVUtil, "av_frame_alloc")
		purego.RegisterLibFunc(&avFrameFree, libAVUtil, "av_frame_free")
	})
	return loadErr
}

// LogLevelQuiet mirrors AV_LOG_QUIET.
const LogLevelQuiet int32 = -8

// SetLogLevel mutates the process-wide FFmpeg log level. Process-wide side
// effect: any other component in the same process sharing these native
// libraries observes the change too.
func SetLogLevel(level int32) {
	if err := load(); err != nil {
		return
	}
	avLogSetLevel(level)
}

func openFirst(names ...string) (uintptr, error) {
	var lastErr error
	for _, name := range names {
		if h, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL); err == nil {
			return h, nil
		} else {
			lastErr = err
		}
	}
	return 0, lastErr
}

// GetByName resolves a bitstream filter by its registered name
// ("h264_mp4toannexb" for this repository's purposes).
func GetByName(name string) (BSF, error) {
	if err := load(); err != nil {
		return nil, err
	}
	f := avBSFGetByName(name)
	if f == nil {
		return nil, fmt.Errorf("avbsf: filter %q not found", name)
	}
	return f, nil
}

// Alloc allocates a filter context for the given filter.
func Alloc(filter BSF) (BSFContext, error) {
	if err := load(); err != nil {
		return nil, err
	}
	var ctx BSFContext
	if ret := avBSFAlloc(filter, &ctx); ret < 0 {
		return nil, fmt.Errorf("avbsf: av_bsf_alloc: status %d", ret)
	}
	return ctx, nil
}

// Init finalizes a filter context after its par_in/time_base_in have been set.
func Init(ctx BSFContext) error {
	if err := load(); err != nil {
		return err
	}
	if ret := avBSFInit(ctx); ret < 0 {
		return fmt.Errorf("avbsf: av_bsf_init: status %d", ret)
	}
	return nil
}

// SendPacket feeds one packet into the filter. pkt is an AVPacket pointer
// (unsafe.Pointer so callers can pass either ffgo's avcodec.Packet or this
// package's own allocation without an import cycle).
func SendPacket(ctx BSFContext, pkt unsafe.Pointer) int32 {
	return avBSFSendPacket(ctx, pkt)
}

// ReceivePacket pulls one filtered packet out of the filter. The caller is
// expected to branch on AVERROR_EAGAIN/AVERROR_EOF itself, mirroring the
// decoder's own send/receive retry loop.
func ReceivePacket(ctx BSFContext, pkt unsafe.Pointer) int32 {
	return avBSFReceivePacket(ctx, pkt)
}

// Free releases the filter context. Safe to call with a nil *ctx.
func Free(ctx *BSFContext) {
	if ctx == nil || *ctx == nil {
		return
	}
	avBSFFree(ctx)
}

// CopyCodecParameters copies src codec parameters into dst
// (avcodec_parameters_copy), used to seed a bitstream filter's par_in.
func CopyCodecParameters(dst, src unsafe.Pointer) error {
	if err := load(); err != nil {
		return err
	}
	if ret := avCodecParametersCopy(dst, src); ret < 0 {
		return fmt.Errorf("avbsf: avcodec_parameters_copy: status %d", ret)
	}
	return nil
}

// AVBSFContext field offsets. Verified with offsetof() on FFmpeg 60.16.100.
// Layout: filter*, priv_data*, par_in*, par_out*, time_base_in{num,den}, time_base_out{num,den}.
const (
	offsetBSFParIn       = 16 // AVCodecParameters *par_in
	offsetBSFTimeBaseIn  = 32 // AVRational time_base_in {int num; int den;}
)

// ParIn returns ctx->par_in (the filter's own AVCodecParameters) so
// CopyCodecParameters can target it directly.
func ParIn(ctx BSFContext) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(uintptr(ctx) + offsetBSFParIn))
}

// SetTimeBaseIn sets ctx->time_base_in to num/den.
func SetTimeBaseIn(ctx BSFContext, num, den int32) {
	base := uintptr(ctx) + offsetBSFTimeBaseIn
	*(*int32)(unsafe.Pointer(base)) = num
	*(*int32)(unsafe.Pointer(base + 4)) = den
}

// AVPacket field offsets not exposed by ffgo. Verified with offsetof() on
// FFmpeg 60.16.100 (struct AVPacket in libavcodec/packet.h).
const (
	offsetPacketFlags = 40 // int flags
	offsetPacketPos   = 72 // int64_t pos
)

// PacketFlags returns the raw flags word of an AVPacket.
func PacketFlags(pkt unsafe.Pointer) int32 {
	if pkt == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(pkt) + offsetPacketFlags))
}

// PacketIsKeyframe reports whether AV_PKT_FLAG_KEY is set.
func PacketIsKeyframe(pkt unsafe.Pointer) bool {
	return PacketFlags(pkt)&AV_PKT_FLAG_KEY != 0
}

// PacketPos returns the byte offset of the packet within its container,
// or -1 if the demuxer does not know it.
func PacketPos(pkt unsafe.Pointer) int64 {
	if pkt == nil {
		return -1
	}
	return *(*int64)(unsafe.Pointer(uintptr(pkt) + offsetPacketPos))
}

// AVCodecParameters.bit_rate offset, used for the AVCC/AnnexB heuristic.
// Verified with offsetof() on FFmpeg 60.16.100.
const offsetCodecParBitRate = 32

// CodecParBitRate returns the bit_rate field of an AVCodecParameters.
func CodecParBitRate(par unsafe.Pointer) int64 {
	if par == nil {
		return 0
	}
	return *(*int64)(unsafe.Pointer(uintptr(par) + offsetCodecParBitRate))
}

// FrameAlloc allocates an empty AVFrame (av_frame_alloc). ffgo's avutil
// package exposes frame.GetFramePTS and frame.FrameUnref but no
// constructor or raster-field accessors, so the whole AVFrame lifecycle
// and pixel layout live here.
func FrameAlloc() (unsafe.Pointer, error) {
	if err := load(); err != nil {
		return nil, err
	}
	f := avFrameAlloc()
	if f == nil {
		return nil, fmt.Errorf("avbsf: av_frame_alloc returned nil")
	}
	return f, nil
}

// FrameFree frees a frame and its buffers (av_frame_free). Safe to call
// with a nil *frame.
func FrameFree(frame *unsafe.Pointer) {
	if frame == nil || *frame == nil {
		return
	}
	avFrameFree(frame)
}

// AVFrame field offsets. This prefix of the struct (data, linesize) has
// been ABI-stable across FFmpeg 4.x through 7.x. Width/height/format are
// read off the codec context instead (avcodec.GetCtxWidth/Height/PixFmt),
// which ffgo already exposes.
const (
	offsetFrameData     = 0  // uint8_t *data[8]
	offsetFrameLinesize = 64 // int linesize[8]
)

// FrameLinesize returns frame->linesize[plane].
func FrameLinesize(frame unsafe.Pointer, plane int) int32 {
	return *(*int32)(unsafe.Pointer(uintptr(frame) + offsetFrameLinesize + uintptr(plane)*4))
}

// FramePlane copies frame->data[plane] into a owned []byte of n bytes.
// The caller supplies n (linesize * rows for that plane) since row count
// depends on chroma subsampling, which this package does not model.
func FramePlane(frame unsafe.Pointer, plane int, n int32) []byte {
	if n <= 0 {
		return nil
	}
	ptr := *(*unsafe.Pointer)(unsafe.Pointer(uintptr(frame) + offsetFrameData + uintptr(plane)*8))
	if ptr == nil {
		return nil
	}
	src := unsafe.Slice((*byte)(ptr), int(n))
	dst := make([]byte, n)
	copy(dst, src)
	return dst
}
