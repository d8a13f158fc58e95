// Package paintward drives the externally-built paint automation worker over
// its standard input/output.
//
// The worker speaks newline-delimited JSON-RPC 2.0 on stdout, freely
// interleaved with its own log lines; its stderr carries free-form
// diagnostics. A Session owns exactly one worker process: it spawns it,
// correlates responses to requests by identifier under a deadline, and tears
// the process down deterministically.
//
// # Basic Usage
//
//	ctx := context.Background()
//	session, err := paintward.StartSession(ctx, "target/release/mcp-server-microsoft-paint",
//	    paintward.WithEnv(map[string]string{"RUST_LOG": "debug"}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Shutdown(ctx)
//
//	resp, err := session.Call(ctx, "get_version", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Typed wrappers for the worker's method set are available on Session
// (Connect, DrawLine, SaveCanvas, ...); they are thin calls and implement no
// drawing logic themselves.
//
// # Logging
//
// For detailed operation tracking, inject a logger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	session, err := paintward.StartSession(ctx, workerPath, paintward.WithLogger(logger))
//
// # Error Handling
//
// User-visible failures are *SpawnError, ErrRequestTimeout, *ProcessExitError,
// ErrDuplicateID, and ErrSessionClosed. Malformed or unmatched frames on the
// wire are absorbed and logged; one bad line never aborts a healthy session.
package paintward
