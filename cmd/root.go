/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"curvebond/domain/config"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "curvebond",
	Short: "Bonding curve ledger",
	Long: `Keeps a bonding token whose price follows a curve. Reserve deposited
through the API mints supply, selling burns it and queues the released reserve
until the unbonding period is over.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.ReadConfig(cfgFile)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
}
