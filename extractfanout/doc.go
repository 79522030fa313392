// Package extractfanout distributes completed extraction results to
// multiple subscribers without letting a slow subscriber hold up the
// producer.
//
// # Core Philosophy
//
// "Drop frames, never queue. Latency > Completeness."
//
// Publish never blocks: a subscriber whose channel is full simply
// misses that result, and the miss is counted rather than queued. This
// mirrors the drop policy the rest of this codebase's frame-bus module
// uses for live video, applied here to completed decode runs instead of
// individual packets.
//
// # Basic Usage
//
//	bus := extractfanout.New()
//	defer bus.Close()
//
//	ch := make(chan extractfanout.ExtractResult, 4)
//	bus.Subscribe("cli-writer", ch)
//
//	bus.Publish(result)
//
// # Domain Boundary
//
// extractfanout is deliberately ignorant of H.264: it moves
// already-decoded ExtractResult values, never packets or native
// contexts. intervaldecoder never imports this package.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package extractfanout
