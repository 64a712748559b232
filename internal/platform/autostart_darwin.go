//go:build darwin

package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DarwinAutostart implements Autostart for macOS via a LaunchAgent.
type DarwinAutostart struct {
	spec AutostartSpec
}

// NewAutostart builds the autostart handler for the current OS,
// embedding spec's identity into whatever it writes.
func NewAutostart(spec AutostartSpec) Autostart {
	return &DarwinAutostart{spec: spec}
}

func (a *DarwinAutostart) plistPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "LaunchAgents", a.spec.Label+".plist")
}

func (a *DarwinAutostart) appPath() string {
	exe, _ := os.Executable()
	if idx := strings.Index(exe, ".app/"); idx != -1 {
		return exe[:idx+4]
	}
	return exe
}

func (a *DarwinAutostart) IsEnabled() bool {
	_, err := os.Stat(a.plistPath())
	return err == nil
}

func (a *DarwinAutostart) Enable() error {
	appPath := a.appPath()
	var program strings.Builder
	if strings.HasSuffix(appPath, ".app") {
		// Finder-launched bundles take their arguments from Info.plist,
		// not argv, so the configured Args have nowhere to go here.
		fmt.Fprintf(&program, "<string>/usr/bin/open</string>\n        <string>-a</string>\n        <string>%s</string>", appPath)
	} else {
		fmt.Fprintf(&program, "<string>%s</string>", appPath)
		for _, arg := range a.spec.Args {
			fmt.Fprintf(&program, "\n        <string>%s</string>", arg)
		}
	}

	plist := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>%s</string>
    <key>ProgramArguments</key>
    <array>
        %s
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>`, a.spec.Label, program.String())

	return os.WriteFile(a.plistPath(), []byte(plist), 0644)
}

func (a *DarwinAutostart) Disable() error {
	return os.Remove(a.plistPath())
}
