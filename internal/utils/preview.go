package utils

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenWithSystemViewer opens path in the desktop's default application without
// waiting for it to exit.
func OpenWithSystemViewer(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch viewer: %w", err)
	}
	go cmd.Wait()
	return nil
}
