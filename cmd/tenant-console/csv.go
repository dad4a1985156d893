package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tenant-console/internal/services/csvimport"
)

func csvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Bulk CSV imports",
	}
	cmd.AddCommand(csvUsersCmd())
	return cmd
}

func csvUsersCmd() *cobra.Command {
	var (
		mode     string
		dryRun   bool
		template bool
		opts     csvimport.Options
	)

	cmd := &cobra.Command{
		Use:   "users [file]",
		Short: "Preview and import users from a CSV file",
		Long: `Parse a users CSV (email required; firstName, lastName, role optional)
and submit it to the tenant.

Examples:
  tenant-console csv users --template > users.csv
  tenant-console csv users users.csv --dry-run
  tenant-console csv users users.csv --send-invites --mode rfc4180`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema := csvimport.UsersSchema()
			out := cmd.OutOrStdout()
			if template {
				_, err := fmt.Fprint(out, schema.Template())
				return err
			}
			if len(args) == 0 {
				return fmt.Errorf("a CSV file is required")
			}

			parseMode, err := csvimport.ParseModeFromString(mode)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx, a, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tenantID, err := a.TenantID()
			if err != nil {
				return err
			}
			panel := csvimport.NewPanel(schema, parseMode, csvimport.UsersImporter(a.Client(), tenantID))
			rows, err := panel.Load(f)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tFIRST NAME\tLAST NAME\tROLE")
			for _, row := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row["email"], row["firstName"], row["lastName"], row["role"])
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d rows parsed\n", len(rows))
			if dryRun {
				return nil
			}

			result, err := panel.Submit(ctx, opts)
			if err != nil {
				return err
			}
			for _, r := range result.Results {
				if r.Status == csvimport.StatusError {
					fmt.Fprintf(out, "  %s: %s\n", r.Name, r.Reason)
				}
			}
			fmt.Fprintf(out, "Created %d, skipped %d, errors %d\n", result.Created, result.Skipped, result.Errors)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&mode, "mode", csvimport.Naive.String(), "parse mode (naive|rfc4180)")
	flags.BoolVar(&dryRun, "dry-run", false, "parse and preview only")
	flags.BoolVar(&template, "template", false, "print the CSV template and exit")
	flags.BoolVar(&opts.SkipExisting, "skip-existing", true, "skip users that already exist")
	flags.BoolVar(&opts.SendInvites, "send-invites", false, "email invitations to created users")
	flags.StringVar(&opts.DefaultRole, "default-role", "", "role for rows without one")
	return cmd
}
