// Package frame classifies worker output lines and encodes outbound frames.
//
// The worker's stdout is not pure protocol traffic: its own log lines are
// interleaved with JSON-RPC frames. Classification is total — every line maps
// to exactly one category — and never aborts the read loop on a bad line.
package frame
