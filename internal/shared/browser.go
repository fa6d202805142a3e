package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// browserLaunchers maps GOOS to the command that hands a URL to the desktop's default browser.
var browserLaunchers = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// browserCommand builds the launcher for goos without starting it.
func browserCommand(goos, url string) (*exec.Cmd, error) {
	launcher, ok := browserLaunchers[goos]
	if !ok {
		return nil, fmt.Errorf("%w: no browser launcher for %s", ErrUnsupportedPlatform, goos)
	}
	args := append(launcher[1:len(launcher):len(launcher)], url)
	return exec.Command(launcher[0], args...), nil
}

// OpenBrowser opens url in the default browser so a user can approve an account link.
// It returns once the launcher has started; callers should print the URL when it fails.
func OpenBrowser(url string) error {
	cmd, err := browserCommand(runtime.GOOS, url)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}
