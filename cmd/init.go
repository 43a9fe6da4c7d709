package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/wireline/state"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new [id]",
	Short: "Create a node configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return cmd.Usage()
		}
		links, _ := cmd.Flags().GetStringArray("link")
		baud, _ := cmd.Flags().GetInt("baud")
		ctl, _ := cmd.Flags().GetString("ctl-socket")

		nodeCfg := state.LocalCfg{
			Id:        state.NodeId(args[0]),
			Baud:      baud,
			CtlSocket: ctl,
		}
		for _, l := range links {
			nodeCfg.Links = append(nodeCfg.Links, state.LinkId(l))
		}
		if err := state.NodeConfigValidator(&nodeCfg); err != nil {
			return err
		}

		outPath := cmd.Flag("output").Value.String()
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(outPath); err == nil && !force {
			return fmt.Errorf("%s already exists, use --force to overwrite it", outPath)
		}
		if err := state.WriteNodeConfig(outPath, &nodeCfg); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", outPath)
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringP("output", "o", state.DefaultNodeConfigPath, "node config output file path")
	newCmd.Flags().StringArrayP("link", "l", nil, "link to open, may be repeated")
	newCmd.Flags().IntP("baud", "b", state.DefaultBaud, "serial baud rate")
	newCmd.Flags().String("ctl-socket", "", "unix socket for `wireline ctl`")
	newCmd.Flags().BoolP("force", "f", false, "overwrite an existing file")
}
