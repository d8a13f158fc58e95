// Package locate resolves the worker executable's path.
package locate

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultWorkerName is the image name of the paint automation worker.
const DefaultWorkerName = "mcp-server-microsoft-paint"

// Worker resolves the worker binary.
//
// An explicit path is used as-is and only validated for existence. Otherwise
// the name is searched in PATH and then in the conventional build output
// directories the worker ships from.
func Worker(log *slog.Logger, explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}

		return "", fmt.Errorf("worker binary not found at %s", explicit)
	}

	searched := make([]string, 0, 4)

	if path, err := exec.LookPath(DefaultWorkerName); err == nil {
		log.Debug("Found worker in PATH", "path", path)

		return path, nil
	}

	searched = append(searched, "$PATH")

	for _, dir := range []string{
		filepath.Join("target", "release"),
		filepath.Join("target", "debug"),
		".",
	} {
		candidate := filepath.Join(dir, DefaultWorkerName)
		searched = append(searched, candidate)

		if _, err := os.Stat(candidate); err == nil {
			log.Debug("Found worker binary", "path", candidate)

			return candidate, nil
		}

		// Windows build outputs carry the .exe suffix.
		if _, err := os.Stat(candidate + ".exe"); err == nil {
			return candidate + ".exe", nil
		}
	}

	return "", fmt.Errorf("worker binary not found in: %s", strings.Join(searched, ", "))
}
