package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/SonicMatch/internal/config"
	"github.com/himanishpuri/SonicMatch/pkg/logger"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch"
)

// settings is filled by the root command before any subcommand runs.
var settings *config.Settings

func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sonicmatch",
		Short:         "SonicMatch - content-based audio recognition",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load(cmd)
			if err != nil {
				return err
			}
			s.ApplyLogLevel()
			settings = s
			logger.GetLogger().Debugf("Executing command: %s", cmd.Name())
			return nil
		},
	}
	config.AddFlags(rootCmd)

	rootCmd.AddCommand(
		addCommand(),
		batchCommand(),
		recognizeCommand(),
		compareCommand(),
		similarCommand(),
		listCommand(),
		deleteCommand(),
		historyCommand(),
		extractCommand(),
		fingerprintCommand(),
		spectrogramCommand(),
		cleanupCommand(),
	)

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\n\n%s", err, cmd.UsageString())
	})
	return rootCmd
}

// createService creates a SonicMatch service from the loaded settings.
func createService() (sonicmatch.Service, error) {
	svc, err := sonicmatch.NewService(settings.Options()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, nil
}
