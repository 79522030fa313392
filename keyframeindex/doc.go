// Package keyframeindex scans an H.264 container once and builds an
// ordered table of its keyframe (IDR) positions, without decoding a
// single sample.
//
// # Basic Usage
//
//	idx := keyframeindex.New()
//	if err := idx.Init("clip.mp4"); err != nil {
//	    log.Fatalf("init: %v", err)
//	}
//	defer idx.Close()
//
//	table, err := idx.Parse()
//	if err != nil {
//	    log.Fatalf("parse: %v", err)
//	}
//	for _, kf := range table {
//	    fmt.Printf("keyframe idx=%d base=%d len=%d\n", kf.Idx, kf.Base, kf.Len)
//	}
//
// # Cost Model
//
// Parse() is a single demuxer-only pass over the file: O(packet count)
// in I/O, negligible in CPU. It does no NAL-unit parsing and invokes no
// bitstream filter — that work belongs to intervaldecoder, and is only
// ever paid for the intervals that actually contain a wanted frame.
//
// # Thread Safety
//
// An Indexer is owned by one caller at a time and must not be shared
// across goroutines. Independent Indexer instances over independent
// files may run concurrently without coordination.
package keyframeindex
