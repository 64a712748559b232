//go:build linux

package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LinuxAutostart implements Autostart for Linux via an XDG autostart
// desktop entry.
type LinuxAutostart struct {
	spec AutostartSpec
}

// NewAutostart builds the autostart handler for the current OS,
// embedding spec's identity into whatever it writes.
func NewAutostart(spec AutostartSpec) Autostart {
	return &LinuxAutostart{spec: spec}
}

func (a *LinuxAutostart) autostartDir() string {
	config := os.Getenv("XDG_CONFIG_HOME")
	if config == "" {
		home, _ := os.UserHomeDir()
		config = filepath.Join(home, ".config")
	}
	return filepath.Join(config, "autostart")
}

func (a *LinuxAutostart) desktopFilePath() string {
	return filepath.Join(a.autostartDir(), a.spec.Name+".desktop")
}

func (a *LinuxAutostart) IsEnabled() bool {
	_, err := os.Stat(a.desktopFilePath())
	return err == nil
}

func (a *LinuxAutostart) Enable() error {
	dir := a.autostartDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	exe, _ := os.Executable()
	exec := exe
	if len(a.spec.Args) > 0 {
		exec = exe + " " + strings.Join(a.spec.Args, " ")
	}

	entry := fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=%s
Comment=%s
Exec=%s
Icon=input-keyboard
Terminal=false
Categories=Utility;Accessibility;
X-GNOME-Autostart-enabled=true
`, a.spec.DisplayName, a.spec.Comment, exec)

	return os.WriteFile(a.desktopFilePath(), []byte(entry), 0644)
}

func (a *LinuxAutostart) Disable() error {
	return os.Remove(a.desktopFilePath())
}
