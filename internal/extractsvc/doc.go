// Package extractsvc is the ambient shell around keyframeindex and
// intervaldecoder: YAML configuration, structured logging, a bounded
// worker pool that runs one IntervalDecoder per job on its own
// goroutine, and a health snapshot for an operator-facing process.
//
// keyframeindex and intervaldecoder stay opinion-free about logging
// destinations, configuration sources, and process lifecycle; all of
// that lives here, one layer up, the same way the reference daemon
// this package is modeled on keeps its stream and inference modules
// free of such concerns.
package extractsvc
