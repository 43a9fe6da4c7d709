package cmd

import (
	"os"

	"github.com/encodeous/wireline/state"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wireline",
	Short: "Wireline serial network stack",
	Long: `Wireline turns a set of point-to-point serial lines into a small routed network.
Each node discovers its neighbours, computes routes with a distance vector protocol and offers reliable delivery, ping and traceroute on top.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Set up a node",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "wl",
		Title: "Wireline Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&state.NodeConfigPath, "config", "c", state.NodeConfigPath, "node config")
}
