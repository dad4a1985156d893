package main

import (
	"github.com/spf13/cobra"

	"tenant-console/internal/web"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP bridge and the import scheduler",
		Long: `Start the HTTP bridge a browser UI drives, plus the cron scheduler
for saved imports.

Examples:
  tenant-console serve
  tenant-console serve --addr 127.0.0.1:9000 --profile staging`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.StartScheduler(); err != nil {
				return err
			}
			if addr == "" {
				addr = a.Config().Server.Addr
			}
			return web.NewServer(a).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
