// Package browser opens run dashboards in the user's default browser.
package browser

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// EnvBrowser names a browser command that takes precedence over the
// platform default.
const EnvBrowser = "BROWSER"

// Opener launches a detached browser process for a URL.
type Opener struct {
	command string
	args    []string
	start   func(name string, args ...string) error
}

// New returns an Opener for the current platform.
func New() *Opener {
	command, args := platformCommand(runtime.GOOS)
	if override := strings.TrimSpace(os.Getenv(EnvBrowser)); override != "" {
		command, args = override, nil
	}
	return &Opener{command: command, args: args, start: startDetached}
}

func platformCommand(goos string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return "xdg-open", nil
	}
}

// Command reports the program used to open URLs.
func (o *Opener) Command() string {
	return o.command
}

// Open starts the browser on target without waiting for it to exit.
func (o *Opener) Open(target string) error {
	parsed, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("refusing to open non-http url %q", target)
	}
	args := append(append([]string(nil), o.args...), parsed.String())
	if err := o.start(o.command, args...); err != nil {
		return fmt.Errorf("launch %s: %w", o.command, err)
	}
	return nil
}

func startDetached(name string, args ...string) error {
	proc := exec.Command(name, args...)
	if err := proc.Start(); err != nil {
		return err
	}
	return proc.Process.Release()
}
