package locate

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// chdir is a stand-in for testing.T.Chdir, which needs Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestWorker_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))

	resolved, err := Worker(slog.Default(), path)
	require.NoError(t, err)
	require.Equal(t, path, resolved)
}

func TestWorker_ExplicitPathMissing(t *testing.T) {
	_, err := Worker(slog.Default(), filepath.Join(t.TempDir(), "absent"))
	require.ErrorContains(t, err, "not found")
}

func TestWorker_FindsBuildOutput(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	out := filepath.Join(dir, "target", "release")
	require.NoError(t, os.MkdirAll(out, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(out, DefaultWorkerName), []byte{}, 0o755))

	// Keep PATH from resolving a real install first.
	t.Setenv("PATH", dir)

	resolved, err := Worker(slog.Default(), "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("target", "release", DefaultWorkerName), resolved)
}

func TestWorker_NothingFound(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PATH", t.TempDir())

	_, err := Worker(slog.Default(), "")
	require.ErrorContains(t, err, "not found")
}
