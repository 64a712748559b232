package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kidandcat-derived/macroengine/internal/config"
	"github.com/kidandcat-derived/macroengine/internal/obslog"
)

var (
	cfgFile string
	logger  *zap.Logger
	engCfg  config.EngineConfig
)

var rootCmd = &cobra.Command{
	Use:   "macroengine",
	Short: "Gesture-driven keyboard macro engine",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		cfg, err := config.Load(path)
		if err != nil {
			fallback, _ := obslog.New(obslog.DefaultConfig())
			logger = fallback
			return fmt.Errorf("load config: %w", err)
		}
		applyEnvOverrides(&cfg)
		engCfg = cfg

		l, err := obslog.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		logger.Info("macroengine: configuration loaded", zap.String("path", path))
		return nil
	},
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error("command failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// envOverrideKeys are the EngineConfig fields an operator can override
// without editing config.yaml, e.g. MACROENGINE_LOGGING_LEVEL=debug or
// MACROENGINE_PROFILE_NAME=away-from-keyboard.
var envOverrideKeys = []string{
	"logging.level",
	"logging.format",
	"logging.filepath",
	"altshiftmode",
	"profile.name",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default $MACROENGINE_HOME/config.yaml)")
	viper.SetEnvPrefix("MACROENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, k := range envOverrideKeys {
		if err := viper.BindEnv(k); err != nil {
			panic(fmt.Sprintf("macroengine: bind env %s: %v", k, err))
		}
	}
}

// applyEnvOverrides layers any set MACROENGINE_* environment variables
// on top of the values config.Load already parsed from YAML, matching
// the usual file-then-environment precedence (spec.md §4.9).
func applyEnvOverrides(cfg *config.EngineConfig) {
	if v := viper.GetString("logging.level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := viper.GetString("logging.format"); v != "" {
		cfg.Logging.Format = v
	}
	if v := viper.GetString("logging.filepath"); v != "" {
		cfg.Logging.FilePath = v
	}
	if v := viper.GetString("altshiftmode"); v != "" {
		cfg.AltShiftMode = v
	}
	if v := viper.GetString("profile.name"); v != "" {
		cfg.Profile.Name = v
	}
}

func resolveConfigPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
