// Package internal implements Decoder behind intervaldecoder's public
// interface.
//
// This package is INTERNAL - clients MUST use the public API in the
// parent package.
package internal

import (
	"errors"
	"sort"

	"github.com/primkey7607/vdms/keyframeindex"
)

// KeyFrame and KeyframeTable are re-used directly from keyframeindex
// rather than re-declared, since an IntervalMap is built from exactly
// the table keyframeindex.Parse produces.
type KeyFrame = keyframeindex.KeyFrame
type KeyframeTable = keyframeindex.KeyframeTable

// ErrEmptyInput is returned by BuildIntervalMap when either the table or
// the wanted set is empty.
var ErrEmptyInput = errors.New("intervaldecoder: empty input")

// FrameInterval is a half-open span [Start.Idx, End.Idx) of decode-order
// indices bounded by two adjacent entries of a KeyframeTable. Both ends
// are always real keyframes; no tail interval runs to end of stream (see
// BuildIntervalMap's doc comment).
type FrameInterval struct {
	Start KeyFrame
	End   KeyFrame
}

// IntervalEntry pairs one FrameInterval with the wanted frame indices
// that fall inside it, ascending and deduplicated.
type IntervalEntry struct {
	Interval FrameInterval
	Wanted   []uint64
}

// IntervalMap is the ordered, non-overlapping partition of every
// reachable wanted frame index into its containing interval. Intervals
// with no wanted frame are never materialized.
type IntervalMap []IntervalEntry

// BuildIntervalMap partitions wanted frame indices into the minimal set
// of adjacent-keyframe-bounded intervals that must be decoded to satisfy
// them.
//
// Only adjacent keyframe pairs form intervals; there is no synthesized
// tail interval running from the last keyframe to end of stream. Wanted
// indices below the first keyframe or at-or-after the last keyframe are
// therefore unreachable by construction and are returned separately as
// dropped, rather than silently vanishing, so a caller can log them.
func BuildIntervalMap(table KeyframeTable, wanted []uint64) (IntervalMap, []uint64, error) {
	if len(table) == 0 || len(wanted) == 0 {
		return nil, nil, ErrEmptyInput
	}

	sortedKF := make(KeyframeTable, len(table))
	copy(sortedKF, table)
	sort.SliceStable(sortedKF, func(i, j int) bool { return sortedKF[i].Idx < sortedKF[j].Idx })

	sortedWanted := uniqueSorted(wanted)

	var dropped []uint64
	var out IntervalMap

	wi := 0
	for wi < len(sortedWanted) && sortedWanted[wi] < sortedKF[0].Idx {
		dropped = append(dropped, sortedWanted[wi])
		wi++
	}

	for ki := 0; ki+1 < len(sortedKF); ki++ {
		start, end := sortedKF[ki], sortedKF[ki+1]

		var bucket []uint64
		for wi < len(sortedWanted) && sortedWanted[wi] < end.Idx {
			bucket = append(bucket, sortedWanted[wi])
			wi++
		}

		if len(bucket) > 0 {
			out = append(out, IntervalEntry{
				Interval: FrameInterval{Start: start, End: end},
				Wanted:   bucket,
			})
		}
	}

	for ; wi < len(sortedWanted); wi++ {
		dropped = append(dropped, sortedWanted[wi])
	}

	return out, dropped, nil
}

func uniqueSorted(in []uint64) []uint64 {
	set := make(map[uint64]struct{}, len(in))
	for _, v := range in {
		set[v] = struct{}{}
	}
	out := make([]uint64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
