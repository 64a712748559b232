package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kidandcat-derived/macroengine/internal/profile"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the loaded profile without running the engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := engCfg.Profile.Timing.Validate(); err != nil {
			return fmt.Errorf("timing: %w", err)
		}
		if err := profile.ValidateProfile(engCfg.Profile); err != nil {
			return fmt.Errorf("profile: %w", err)
		}

		compiled := profile.Compile(engCfg.Profile, engCfg.AltShiftPolicy())
		fmt.Printf("profile %q is valid: %d binding(s), %d conundrum key(s)\n",
			engCfg.Profile.Name, len(engCfg.Profile.Bindings), len(compiled.ConundrumKeys))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
