package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-tango/internal/log"
	"github.com/teslashibe/go-tango/pkg/tango"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard and the expression keyboard",
	Long: `Start the web dashboard. Capture is toggled from the dashboard or with
POST /api/capture; pass --enable to start it right away.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("enable", false, "Start capture immediately")
	serveCmd.Flags().String("port", "", "Port to listen on (overrides config)")
	serveCmd.Flags().String("camera", "", "Camera index, file or stream URL (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port := mustGetString(cmd, "port"); port != "" {
		cfg.HTTP.Port = port
	}
	if device := mustGetString(cmd, "camera"); device != "" {
		cfg.Camera.Device = device
	}

	app, err := tango.New(cfg, tango.Options{AutoEnable: mustGetBool(cmd, "enable")})
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := app.Init(); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("dashboard listening", "url", "http://localhost:"+cfg.HTTP.Port)
	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("runtime error: %w", err)
	}
	return nil
}
