package platform

// AutostartSpec names the identity strings the per-OS autostart
// backend embeds into its LaunchAgent plist, desktop entry, or
// registry value. Parameterizing these lets a non-default profile
// (invoked via `--config`) register its own independent autostart
// entry instead of always claiming the single hardcoded identity a
// fixed build would.
type AutostartSpec struct {
	// Label is the reverse-DNS identifier macOS uses for the
	// LaunchAgent plist filename and its Label key, e.g.
	// "com.macroengine.app".
	Label string
	// Name is the short identifier used for the Linux desktop entry
	// filename and the Windows Run registry value name.
	Name string
	// DisplayName is shown in the Linux desktop entry's Name= field.
	DisplayName string
	// Comment is shown in the Linux desktop entry's Comment= field.
	Comment string
	// Args are appended to the resolved executable path when building
	// the autostart invocation, e.g. []string{"run"}.
	Args []string
}

// DefaultAutostartSpec is the identity used when the operator hasn't
// configured a distinct profile name.
func DefaultAutostartSpec() AutostartSpec {
	return AutostartSpec{
		Label:       "com.macroengine.app",
		Name:        "macroengine",
		DisplayName: "macroengine",
		Comment:     "Gesture-driven keyboard macro engine",
		Args:        []string{"run"},
	}
}

// Autostart registers or removes macroengine from the host OS's
// per-user startup mechanism (spec.md §4.13).
type Autostart interface {
	IsEnabled() bool
	Enable() error
	Disable() error
}
