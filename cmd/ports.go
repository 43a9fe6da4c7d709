package cmd

import (
	"fmt"

	"github.com/encodeous/wireline/link"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Lists the serial ports of this host",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := link.Ports()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
			return nil
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
