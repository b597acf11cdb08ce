package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattsolo1/grove-core/cli"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mattsolo1/grove-mdpad/cmd"
	"github.com/mattsolo1/grove-mdpad/cmd/config"
	"github.com/mattsolo1/grove-mdpad/pkg/service"
)

var svc *service.Service

func main() {
	rootCmd := cli.NewStandardCommand(
		"mdpad",
		"A folder of markdown notes with an autosaving editor",
	)
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	cobra.OnInitialize(config.InitConfig)
	config.AddGlobalFlags(rootCmd)

	rootCmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		// This runs once before any subcommand
		if c.Annotations[cmd.SkipServiceAnnotation] == "true" || c == rootCmd || c.Name() == "help" {
			return nil
		}

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		logger := logrus.New()
		logger.SetOutput(os.Stderr)
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			level = logrus.WarnLevel
			logger.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using warn")
		}
		logger.SetLevel(level)

		svc, err = service.New(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize service: %w", err)
		}
		return svc.Load(c.Context())
	}

	rootCmd.PersistentPostRunE = func(c *cobra.Command, args []string) error {
		if svc == nil {
			return nil
		}
		err := svc.Close(context.Background())
		svc = nil
		return err
	}

	// Add subcommands
	rootCmd.AddCommand(cmd.NewListCmd(&svc))
	rootCmd.AddCommand(cmd.NewCatCmd(&svc))
	rootCmd.AddCommand(cmd.NewNewCmd(&svc))
	rootCmd.AddCommand(cmd.NewMkdirCmd(&svc))
	rootCmd.AddCommand(cmd.NewMoveCmd(&svc))
	rootCmd.AddCommand(cmd.NewRemoveCmd(&svc))
	rootCmd.AddCommand(cmd.NewSearchCmd(&svc))
	rootCmd.AddCommand(cmd.NewServeCmd(&svc))
	rootCmd.AddCommand(cmd.NewTuiCmd(&svc))
	rootCmd.AddCommand(cmd.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if svc != nil {
			_ = svc.Close(context.Background())
		}
		os.Exit(1)
	}
}
