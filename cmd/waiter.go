package cmd

import (
	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"

	"github.com/wizardpb/diningphils/core"
	"github.com/wizardpb/diningphils/waiter"
)

var waiterCmd = &cobra.Command{
	Use:   "waiter",
	Short: "Run the central-arbiter discipline",
	Long: `waiter runs the table with a single waiter goroutine serialising all
fork allocations; philosophers receive both forks at once or wait.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTable(func(p core.Params, status core.StatusFunc, l log15.Logger) (core.Table, error) {
			return waiter.NewTable(p,
				waiter.WithLogger(l),
				waiter.WithStatusFunc(status),
			)
		})
	},
}

func init() {
	RootCmd.AddCommand(waiterCmd)
}
