package cmd

import (
	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"

	"github.com/wizardpb/diningphils/chandymisra"
	"github.com/wizardpb/diningphils/core"
)

var chandyMisraCmd = &cobra.Command{
	Use:     "chandy-misra",
	Aliases: []string{"cm"},
	Short:   "Run the decentralised Chandy-Misra protocol",
	Long: `chandy-misra runs the table under the Chandy-Misra protocol: no
central coordination, forks handed between neighbours by request/grant
messages, fairness by the dirty-fork rule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTable(func(p core.Params, status core.StatusFunc, l log15.Logger) (core.Table, error) {
			return chandymisra.NewTable(p,
				chandymisra.WithLogger(l),
				chandymisra.WithStatusFunc(status),
			)
		})
	},
}

func init() {
	RootCmd.AddCommand(chandyMisraCmd)
}
