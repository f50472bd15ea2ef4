package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd собирает корневую команду finviz.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "finviz",
		Short:         "Analyze personal finance CSV exports",
		Long:          `finviz parses a delimited transaction file (fecha, ingreso, gasto, descripción, categoría) and prints totals, monthly income vs. expenses and the expense breakdown by category.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newAnalyzeCmd())
	return root
}

// Execute запускает CLI.
func Execute() error {
	return NewRootCmd().Execute()
}
