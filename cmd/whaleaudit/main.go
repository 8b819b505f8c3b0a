package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "whaleaudit",
	Short: "whaleaudit - LLM trade-plan auditing for crypto futures",
	Long: `whaleaudit produces whale-manipulation analyses for crypto futures pairs
and audits every published trade plan against the candles the market
actually printed afterwards.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
