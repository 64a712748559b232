package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kidandcat-derived/macroengine/internal/platform"
)

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Manage launching macroengine at login",
}

var autostartEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Register macroengine to start at login",
	RunE: func(cmd *cobra.Command, args []string) error {
		return platform.NewAutostart(autostartSpec()).Enable()
	},
}

var autostartDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Remove macroengine from login startup",
	RunE: func(cmd *cobra.Command, args []string) error {
		return platform.NewAutostart(autostartSpec()).Disable()
	},
}

var autostartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether autostart is enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		if platform.NewAutostart(autostartSpec()).IsEnabled() {
			fmt.Println("enabled")
		} else {
			fmt.Println("disabled")
		}
		return nil
	},
}

// autostartSpec derives the autostart identity from the profile that
// PersistentPreRunE just loaded into engCfg, so a non-default profile
// registers its own independent login entry rather than always
// claiming the single stock "macroengine" identity. If a custom
// --config path was given, it's carried into the registered command
// line too, so the autostarted process picks up the same profile.
func autostartSpec() platform.AutostartSpec {
	spec := platform.DefaultAutostartSpec()
	name := strings.TrimSpace(engCfg.Profile.Name)
	if name != "" && name != "default" {
		slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
		spec.Label = fmt.Sprintf("com.macroengine.app.%s", slug)
		spec.Name = fmt.Sprintf("macroengine-%s", slug)
		spec.DisplayName = fmt.Sprintf("macroengine (%s)", name)
	}
	if cfgFile != "" {
		spec.Args = []string{"run", "--config", cfgFile}
	}
	return spec
}

func init() {
	autostartCmd.AddCommand(autostartEnableCmd, autostartDisableCmd, autostartStatusCmd)
	rootCmd.AddCommand(autostartCmd)
}
