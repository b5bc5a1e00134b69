package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string // Path to config file

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "diningphils",
	Short: "Dining philosophers simulations",
	Long: `diningphils seats N philosophers around a table and runs the dining
philosophers problem under one of three synchronisation disciplines:

  chandy-misra  decentralised message passing (the Chandy-Misra protocol)
  res-hier      globally ordered fork acquisition
  waiter        a central arbiter serialising all allocations

Use "diningphils [command] --help" for discipline-specific details.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := RootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.diningphils.yaml)")
	pf.Int("phil-count", 5, "number of philosophers at the table")
	pf.Int64("food-amount", 10, "servings in the supply (0 for unbounded)")
	pf.String("think-range", "100ms,1s", "thinking delay bounds, \"min,max\"")
	pf.String("eat-range", "100ms,500ms", "eating delay bounds, \"min,max\"")
	pf.Duration("run-for", 0, "stop after this long (0 waits for the supply to run out)")
	pf.Bool("verbose", false, "log protocol traffic to stderr")
	pf.Bool("no-colour", false, "disable colour output")

	if err := viper.BindPFlags(pf); err != nil {
		panic(err)
	}
}

// initConfig reads in the config file and environment variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".diningphils")
		viper.AddConfigPath("$HOME")
	}
	viper.SetEnvPrefix("diningphils")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; flags and defaults cover everything.
	_ = viper.ReadInConfig()
}
