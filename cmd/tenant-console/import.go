package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tenant-console/internal/models"
	"tenant-console/internal/services/asana"
)

func importCmd() *cobra.Command {
	var (
		requestFile string
		req         asana.ImportRequest
		strategy    string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Run an Asana import headlessly and wait for it to finish",
		Long: `Validate, execute and poll one Asana import.

Examples:
  tenant-console import --workspace 1200 --workspace-name Acme --projects 11,12 --target ws-local
  tenant-console import --request import.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestFile != "" {
				raw, err := os.ReadFile(requestFile)
				if err != nil {
					return err
				}
				req = asana.ImportRequest{Options: asana.DefaultOptions()}
				if err := json.Unmarshal(raw, &req); err != nil {
					return fmt.Errorf("failed to parse %s: %w", requestFile, err)
				}
			} else {
				req.Options.ClientMappingStrategy = asana.ClientMappingStrategy(strategy)
			}

			ctx, a, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tenantID, err := a.TenantID()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var lastPhase string
			result, err := a.Import(ctx, tenantID, req, models.OriginCLI, func(run *asana.ImportRun) {
				if run.Phase != lastPhase {
					lastPhase = run.Phase
					fmt.Fprintf(out, "[%s] %s\n", run.Status, run.Phase)
				}
			})
			if result != nil && result.Validation != nil {
				totals := result.Validation.Counts.Totals()
				fmt.Fprintf(out, "Dry run: %d to create, %d to update, %d errors\n",
					totals.Create, totals.Update, len(result.Validation.Errors))
			}
			if err != nil {
				return err
			}

			run := result.Run
			fmt.Fprintf(out, "Run %s finished: %s\n", run.ID, run.Status)
			if len(run.ErrorLog) > 0 {
				name := asana.ErrorReportFilename(run.ID)
				if err := os.WriteFile(name, []byte(asana.ErrorReportCSV(run.ErrorLog)), 0o644); err != nil {
					return err
				}
				fmt.Fprintf(out, "%d errors written to %s\n", len(run.ErrorLog), name)
			}
			if run.Status == asana.StatusFailed {
				return fmt.Errorf("import run %s failed", run.ID)
			}
			return nil
		},
	}

	defaults := asana.DefaultOptions()
	req.Options = defaults
	flags := cmd.Flags()
	flags.StringVar(&requestFile, "request", "", "JSON import request file")
	flags.StringVar(&req.AsanaWorkspaceGID, "workspace", "", "Asana workspace gid")
	flags.StringVar(&req.AsanaWorkspaceName, "workspace-name", "", "Asana workspace name")
	flags.StringSliceVar(&req.ProjectGIDs, "projects", nil, "Asana project gids")
	flags.StringVar(&req.TargetWorkspaceID, "target", "", "tenant workspace id")
	flags.StringVar(&strategy, "client-mapping", string(defaults.ClientMappingStrategy), "client mapping strategy ("+strings.Join([]string{string(asana.MappingSingle), string(asana.MappingTeam)}, "|")+")")
	flags.StringVar(&req.Options.TargetClientID, "client", "", "target client id for the single strategy")
	flags.BoolVar(&req.Options.AutoCreateUsers, "auto-create-users", defaults.AutoCreateUsers, "create users missing from the tenant")
	flags.BoolVar(&req.Options.FallbackUnassigned, "fallback-unassigned", defaults.FallbackUnassigned, "leave tasks unassigned when the user is unknown")
	return cmd
}
