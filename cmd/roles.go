package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/vacancy-crawler/internal/report"
	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// newRolesCmd creates the 'roles' subcommand.
func newRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the searchable roles and supported countries",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			report.Roles(cmd.OutOrStdout(), vacancy.DefaultRoles)
			report.Countries(cmd.OutOrStdout(), vacancy.Countries)
		},
	}
}
