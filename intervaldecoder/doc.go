// Package intervaldecoder decodes the smallest set of keyframe-bounded
// intervals that cover a caller's wanted frame indices, using the table
// keyframeindex produces.
//
// # Basic Usage
//
//	dec := intervaldecoder.New()
//	if err := dec.Init("clip.mp4"); err != nil {
//	    log.Fatalf("init: %v", err)
//	}
//	defer dec.Close()
//
//	dropped, err := dec.SetWanted(table, []uint64{5, 45, 200})
//	if err != nil {
//	    log.Fatalf("set wanted: %v", err)
//	}
//	if len(dropped) > 0 {
//	    log.Printf("%d requested frames unreachable from this table", len(dropped))
//	}
//
//	frames, err := dec.Decode()
//	if err != nil {
//	    log.Fatalf("decode: %v", err)
//	}
//
// # Cost Model
//
// Decode() seeks once per interval and decodes every packet between the
// interval's bounding keyframes, inclusive. It never decodes a packet
// outside of an interval that contains at least one wanted frame.
//
// # Indexing Caveat
//
// The index attached to a DecodedFrame is a decode-order index, matched
// directly against the decoder's pull loop counter — not a
// presentation-order index. A stream with B-frames reorders frames
// between decode and display; callers that need presentation order
// should use DecodedFrame.PTS to re-sort rather than trusting Idx as a
// display position.
//
// # Thread Safety
//
// A Decoder is owned by one caller at a time and must not be shared
// across goroutines. Independent Decoder instances over independent
// files may run concurrently without coordination.
package intervaldecoder
