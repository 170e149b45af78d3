package cmd

import (
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed-bases",
	Short: "Seed base quotations for synthetic indices",
	Long: `Create the missing base quotation of every synthetic index on its
collection start date: 100 for BRL indices, 100 times the currency's FX
quotation otherwise. Indices whose base already exists are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, cleanup, err := buildCollector()
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := service.SeedSyntheticBases(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}
