package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Rajvardhan-Desai/vision-aid/internal/app"
	"github.com/Rajvardhan-Desai/vision-aid/internal/config"
	"github.com/Rajvardhan-Desai/vision-aid/internal/logging"
	"github.com/Rajvardhan-Desai/vision-aid/internal/sim"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the VisionAid pipeline",
		Long:  `Starts the alert pipeline with the collaborators named in the configuration. Stops on SIGINT, SIGTERM, or a confirmed "stop" voice command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			// No Speaker collaborator: espeak is built from config.
			return runApp(cfg, app.Collaborators{
				Transcripts: sim.Transcripts(os.Stdin),
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (default ~/.visionaid/config.yaml)")
	return cmd
}

func newSimCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run with simulated sensors",
		Long:  `Runs the pipeline with a scripted camera scene, a random-walk range sensor, and stdin as the voice recognizer. Speech goes to the log instead of a TTS engine.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runApp(cfg, app.Collaborators{
				Objects:     sim.DemoScene(),
				Ranger:      sim.NewRanger(),
				Speaker:     &sim.Speaker{Logger: logging.WithComponent("speaker")},
				Transcripts: sim.Transcripts(os.Stdin),
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (default ~/.visionaid/config.yaml)")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultConfigPath()
	}
	config.LoadEnv(path)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := logging.Init(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, nil
}

func runApp(cfg *config.Config, collab app.Collaborators) error {
	a, err := app.New(cfg, collab, logging.Logger())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}
