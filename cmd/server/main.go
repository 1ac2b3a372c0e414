//go:build !js && !wasm

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/SonicMatch/internal/config"
	"github.com/himanishpuri/SonicMatch/pkg/logger"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch"
)

func serverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sonicmatch-server",
		Short:         "SonicMatch HTTP API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(cmd)
			if err != nil {
				return err
			}
			settings.ApplyLogLevel()

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			opts := append(settings.Options(), sonicmatch.WithMetrics(registry))
			service, err := sonicmatch.NewService(opts...)
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			defer service.Close()

			server, err := NewServer(service, &ServerConfig{
				Port:           settings.Port,
				DBPath:         settings.DBPath,
				TempDir:        settings.TempDir,
				Threshold:      settings.Threshold,
				Weights:        settings.Weights,
				AllowedOrigins: settings.AllowedOrigins(),
			}, registry)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Start(ctx)
		},
	}

	config.AddFlags(cmd)
	cmd.Flags().Int("port", 8080, "HTTP server port")
	cmd.Flags().String("origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	return cmd
}

func main() {
	if err := serverCommand().ExecuteContext(context.Background()); err != nil {
		logger.GetLogger().Errorf("Server failed: %v", err)
		os.Exit(1)
	}
}
