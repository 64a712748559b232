package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kidandcat-derived/macroengine/internal/config"
	"github.com/kidandcat-derived/macroengine/internal/engine"
	"github.com/kidandcat-derived/macroengine/internal/platform"
)

var noTray bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the macro engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngine()
	},
}

func init() {
	runCmd.Flags().BoolVar(&noTray, "no-tray", false, "run without the systray status indicator")
	rootCmd.AddCommand(runCmd)
}

func runEngine() error {
	eng := engine.New(engCfg, logger)

	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	watcher := config.NewWatcher(path,
		func(cfg config.EngineConfig) { eng.ApplyConfig(cfg) },
		func(err error) { logger.Warn("config: reload rejected", zap.Error(err)) },
	)
	if err := watcher.Start(); err != nil {
		logger.Warn("config: hot-reload disabled", zap.Error(err))
	}
	defer watcher.Stop()

	if err := eng.Run(); err != nil {
		return err
	}
	logger.Info("macroengine: running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	if noTray {
		<-sig
	} else {
		tray := platform.NewTray(eng.Executor(), func() { sig <- syscall.SIGTERM })
		go func() {
			<-sig
			eng.Stop()
			os.Exit(0)
		}()
		tray.Run()
		return nil
	}

	eng.Stop()
	return nil
}
