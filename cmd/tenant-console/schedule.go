package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tenant-console/internal/services/scheduler"
)

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled Asana imports",
	}
	cmd.AddCommand(scheduleListCmd())
	cmd.AddCommand(scheduleUpsertCmd())
	cmd.AddCommand(scheduleDeleteCmd())
	cmd.AddCommand(scheduleRunCmd())
	return cmd
}

func scheduleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled imports",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			jobs, err := a.Scheduler().ListJobs()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCRON\tTZ\tENABLED\tWORKSPACE\tLAST RUN\tLAST ERROR")
			for _, job := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
					job.ID, job.Name, job.Cron, job.Timezone, job.Enabled, job.Workspace, job.LastRunID, job.LastError)
			}
			return w.Flush()
		},
	}
}

func scheduleUpsertCmd() *cobra.Command {
	var (
		req         scheduler.UpsertJobRequest
		requestFile string
	)

	cmd := &cobra.Command{
		Use:   "upsert <name>",
		Short: "Create or update a scheduled import by name",
		Long: `Create or update a scheduled import. The import request is read from a
JSON file in the same shape the import command accepts.

Examples:
  tenant-console schedule upsert nightly --cron "0 2 * * *" --timezone Europe/Berlin --request import.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(requestFile)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &req.Request); err != nil {
				return fmt.Errorf("failed to parse %s: %w", requestFile, err)
			}
			req.Name = args[0]

			_, a, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if req.TenantID == "" {
				if req.TenantID, err = a.TenantID(); err != nil {
					return err
				}
			}
			id, err := a.Scheduler().UpsertJob(req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved scheduled import %s (%s)\n", req.Name, id)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&requestFile, "request", "", "JSON import request file")
	flags.StringVar(&req.Cron, "cron", "", "cron expression, seconds optional")
	flags.StringVar(&req.Timezone, "timezone", "UTC", "IANA timezone the cron expression is read in")
	flags.BoolVar(&req.Enabled, "enabled", true, "schedule the job")
	_ = cmd.MarkFlagRequired("request")
	_ = cmd.MarkFlagRequired("cron")
	return cmd
}

func scheduleDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a scheduled import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return a.Scheduler().DeleteJob(args[0])
		},
	}
}

func scheduleRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Run a scheduled import now and wait for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := a.Scheduler().RunNow(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s finished: %s\n", run.ID, run.Status)
			return nil
		},
	}
}
