package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tenant-console/internal/app"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage saved API profiles",
	}
	cmd.AddCommand(profileListCmd())
	cmd.AddCommand(profileAddCmd())
	cmd.AddCommand(profileDeleteCmd())
	return cmd
}

func profileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			profiles, err := a.ListProfiles()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBASE URL\tTENANT")
			for _, p := range profiles {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.BaseURL, p.TenantID)
			}
			return w.Flush()
		},
	}
}

func profileAddCmd() *cobra.Command {
	var req app.ProfileRequest

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Save a profile; the token is sealed before it is stored",
		Long: `Save a profile. The token is read from --token or TENANT_CONSOLE_PROFILE_TOKEN
and sealed with the keyring-held master key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			if req.Token == "" {
				req.Token = os.Getenv("TENANT_CONSOLE_PROFILE_TOKEN")
			}

			_, a, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			profile, err := a.CreateProfile(req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s (%s)\n", profile.Name, profile.ID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.BaseURL, "base-url", "", "console API base URL")
	flags.StringVar(&req.TenantID, "tenant-id", "", "tenant id")
	flags.StringVar(&req.Token, "token", "", "API token")
	_ = cmd.MarkFlagRequired("base-url")
	_ = cmd.MarkFlagRequired("tenant-id")
	return cmd
}

func profileDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return a.DeleteProfile(args[0])
		},
	}
}
