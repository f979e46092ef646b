package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/vacancy-crawler/internal/report"
	"github.com/JakeFAU/vacancy-crawler/internal/skills"
)

// newSkillsCmd creates the 'skills' subcommand.
func newSkillsCmd(cfgFile *string) *cobra.Command {
	var input, role string
	var top int
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "Print the most demanded skills of exported rows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*cfgFile)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			rows, err := loadRows(cmd.Context(), input, cfg.Output.PostgresTable)
			if err != nil {
				return err
			}
			if top <= 0 {
				top = cfg.Skills.TopK
			}
			report.Skills(cmd.OutOrStdout(), role, skills.TopSkills(rows, role, top))
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "exported rows (.csv, or .db/.sqlite for a SQLite output)")
	cmd.Flags().StringVar(&role, "role", "", "only rows with this role; empty means every row")
	cmd.Flags().IntVar(&top, "top", 0, "number of skills to print (default skills.top_k)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
