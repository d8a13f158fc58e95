// Package supervise spawns the worker process with a controlled environment
// and guarantees deterministic teardown: graceful signal, bounded wait,
// forced kill, stream drain, reap.
package supervise
