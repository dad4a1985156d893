package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tenant-console/internal/app"
	"tenant-console/internal/config"
	"tenant-console/internal/logging"
)

var Version = "dev"

var (
	configFile  string
	tenantFlag  string
	profileFlag string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tenant-console",
		Short:         "Tenant admin console backend: Asana imports, CSV user imports and scheduled syncs",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default searches ~/.tenant-console and the working directory)")
	rootCmd.PersistentFlags().StringVar(&tenantFlag, "tenant", "", "tenant id, overrides config")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "saved profile to use")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(csvCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(profileCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bootstrap loads config, initializes logging and starts the App. The
// returned context is cancelled on SIGINT or SIGTERM.
func bootstrap(cmd *cobra.Command) (context.Context, *app.App, func(), error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if tenantFlag != "" {
		cfg.TenantID = tenantFlag
	}
	if err := logging.Initialize(cfg.Env, cfg.Log.Level); err != nil {
		return nil, nil, nil, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	a := app.New(cfg)
	if err := a.Startup(ctx); err != nil {
		stop()
		return nil, nil, nil, err
	}
	cleanup := func() {
		a.Shutdown()
		stop()
	}

	if profileFlag != "" {
		if err := a.SelectProfile(profileFlag); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
	}
	return ctx, a, cleanup, nil
}
