package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/encodeous/wireline/core"
	"github.com/encodeous/wireline/state"
	"github.com/spf13/cobra"
)

var ctlCmd = &cobra.Command{
	Use:     "ctl <command...>",
	Aliases: []string{"inspect"},
	Short:   "Runs a shell command on a running node",
	Example: `  wireline ctl table
  wireline ctl --socket /run/wireline.sock ping B 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		socket, _ := cmd.Flags().GetString("socket")
		if socket == "" {
			cfg, err := state.ReadNodeConfig(state.NodeConfigPath)
			if err != nil {
				return fmt.Errorf("no --socket given and %s is unreadable: %w", state.NodeConfigPath, err)
			}
			socket = cfg.CtlSocket
		}
		if socket == "" {
			return fmt.Errorf("node has no ctl_socket configured")
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")
		result, err := core.IPCExec(socket, strings.Join(args, " "), timeout)
		if err != nil {
			return err
		}
		fmt.Print(result)
		return nil
	},
	GroupID: "wl",
}

func init() {
	rootCmd.AddCommand(ctlCmd)
	ctlCmd.Flags().StringP("socket", "s", "", "control socket of the node, defaults to ctl_socket of the node config")
	ctlCmd.Flags().Duration("timeout", 5*time.Second, "connect timeout")
}
