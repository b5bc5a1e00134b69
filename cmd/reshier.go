package cmd

import (
	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"

	"github.com/wizardpb/diningphils/core"
	"github.com/wizardpb/diningphils/reshier"
)

var resHierCmd = &cobra.Command{
	Use:     "res-hier",
	Aliases: []string{"rh"},
	Short:   "Run the resource-hierarchy discipline",
	Long: `res-hier runs the table with forks as mutexes acquired in global id
order, the classic lock-ordering fix for the dining philosophers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTable(func(p core.Params, status core.StatusFunc, l log15.Logger) (core.Table, error) {
			return reshier.NewTable(p,
				reshier.WithLogger(l),
				reshier.WithStatusFunc(status),
			)
		})
	},
}

func init() {
	RootCmd.AddCommand(resHierCmd)
}
