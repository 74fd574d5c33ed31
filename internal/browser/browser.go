// Package browser opens URLs in the user's default web browser.
package browser

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/skratchdot/open-golang/open"
)

// OpenURL opens url in the default web browser. It tries open-golang first and
// falls back to well-known platform commands.
func OpenURL(url string) error {
	err := open.Run(url)
	if err == nil {
		return nil
	}
	slog.Debug("open-golang failed, trying platform-specific commands", "error", err)

	return openPlatformSpecific(url)
}

func openPlatformSpecific(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux":
		for _, name := range []string{"xdg-open", "x-www-browser", "www-browser", "firefox", "chromium"} {
			if _, err := exec.LookPath(name); err == nil {
				cmd = exec.Command(name, url)
				break
			}
		}
		if cmd == nil {
			return fmt.Errorf("no suitable browser found")
		}
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start browser command: %w", err)
	}
	return nil
}
