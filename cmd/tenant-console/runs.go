package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"tenant-console/internal/services/asana"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect import runs",
	}
	cmd.AddCommand(runsListCmd())
	cmd.AddCommand(runsReportCmd())
	return cmd
}

func runsListCmd() *cobra.Command {
	var (
		limit  int
		remote bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, or the server's history with --remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tenantID, err := a.TenantID()
			if err != nil {
				return err
			}

			var runs []asana.ImportRun
			if remote {
				if runs, err = a.Connector(tenantID).Runs(ctx); err != nil {
					return err
				}
			} else {
				records, err := a.Recorder(tenantID).ListRecords(ctx, limit)
				if err != nil {
					return err
				}
				for i := range records {
					run, err := asana.FromRecord(&records[i])
					if err != nil {
						return err
					}
					runs = append(runs, *run)
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tWORKSPACE\tPROJECTS\tERRORS\tCREATED")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					run.ID, run.Status, run.AsanaWorkspaceName, len(run.ProjectGIDs), len(run.ErrorLog),
					run.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum recorded runs to list")
	cmd.Flags().BoolVar(&remote, "remote", false, "list the server's import history")
	return cmd
}

func runsReportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Write a run's error report CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tenantID, err := a.TenantID()
			if err != nil {
				return err
			}
			run, err := a.Recorder(tenantID).Get(ctx, args[0])
			if errors.Is(err, gorm.ErrRecordNotFound) {
				run, err = a.Connector(tenantID).Run(ctx, args[0])
			}
			if err != nil {
				return err
			}

			if output == "-" {
				return asana.WriteErrorReport(cmd.OutOrStdout(), run.ErrorLog)
			}
			if output == "" {
				output = asana.ErrorReportFilename(run.ID)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := asana.WriteErrorReport(f, run.ErrorLog); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d errors written to %s\n", len(run.ErrorLog), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout")
	return cmd
}
