// Package trace records protocol-level events (frames sent, responses
// matched, orphans, decode failures, session transitions) as a stream of
// compact CBOR records for offline analysis.
package trace
