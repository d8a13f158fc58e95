// Package transport owns the worker process's stdio streams and exposes
// deadline-bounded line reads, atomic frame writes, and an independently
// drained diagnostic stream.
package transport
