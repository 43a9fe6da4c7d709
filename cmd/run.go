package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/encodeous/wireline/core"
	"github.com/encodeous/wireline/state"
	"github.com/spf13/cobra"
)

// loadNodeConfig reads the config file if it exists and applies flag overrides on top.
func loadNodeConfig(cmd *cobra.Command) (state.LocalCfg, error) {
	var cfg state.LocalCfg
	file, err := state.ReadNodeConfig(state.NodeConfigPath)
	switch {
	case err == nil:
		cfg = *file
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
	default:
		return cfg, fmt.Errorf("reading %s: %w", state.NodeConfigPath, err)
	}

	flags := cmd.Flags()
	if flags.Changed("id") {
		id, _ := flags.GetString("id")
		cfg.Id = state.NodeId(id)
	}
	if flags.Changed("link") {
		links, _ := flags.GetStringArray("link")
		cfg.Links = cfg.Links[:0]
		for _, l := range links {
			cfg.Links = append(cfg.Links, state.LinkId(l))
		}
	}
	if flags.Changed("baud") {
		cfg.Baud, _ = flags.GetInt("baud")
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries, _ = flags.GetInt("max-retries")
	}
	if flags.Changed("log-path") {
		cfg.LogPath, _ = flags.GetString("log-path")
	}
	if flags.Changed("debug-addr") {
		cfg.DebugAddr, _ = flags.GetString("debug-addr")
	}
	if flags.Changed("ctl-socket") {
		cfg.CtlSocket, _ = flags.GetString("ctl-socket")
	}
	cfg.ApplyDefaults()
	return cfg, state.NodeConfigValidator(&cfg)
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a wireline node",
	Long: `Runs a node on the configured links and opens an interactive shell.
Links are serial devices (/dev/ttyUSB0, COM3), tcp://host:port or tcp-listen://host:port.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadNodeConfig(cmd)
		if err != nil {
			return err
		}

		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}
		if ok, _ := cmd.Flags().GetBool("quiet"); ok {
			level = slog.LevelWarn
		}

		headless, _ := cmd.Flags().GetBool("headless")
		if headless {
			return core.Start(cfg, level, nil)
		}

		s, err := core.Setup(cfg, level, nil)
		if err != nil {
			return err
		}
		core.ServeDebug(cfg.DebugAddr, s.Log)
		core.HandleSignals(s)
		done := make(chan error, 1)
		go func() {
			done <- core.Run(s)
		}()

		err = shell(s, os.Stdout)
		core.Stop(s)
		if runErr := <-done; runErr != nil {
			return runErr
		}
		return err
	},
	GroupID: "wl",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("id", "", "node id, overrides the config file")
	runCmd.Flags().StringArrayP("link", "l", nil, "link to open, may be repeated, overrides the config file")
	runCmd.Flags().IntP("baud", "b", state.DefaultBaud, "serial baud rate")
	runCmd.Flags().Int("max-retries", state.DefaultMaxRetries, "reliable transport attempts before giving up")
	runCmd.Flags().String("log-path", "", "also write logs to this file")
	runCmd.Flags().String("debug-addr", "", "serve expvar and /debug/metrics on this address")
	runCmd.Flags().String("ctl-socket", "", "accept `wireline ctl` commands on this unix socket")
	runCmd.Flags().Bool("headless", false, "run without the interactive shell until SIGINT")

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().BoolP("quiet", "q", false, "Only log warnings and errors")
	runCmd.Flags().BoolVarP(&state.DBG_log_router, "lroute", "r", false, "Write router updates to console")
	runCmd.Flags().BoolVarP(&state.DBG_log_packets, "lpacket", "p", false, "Write every received packet to console")
	runCmd.Flags().BoolVarP(&state.DBG_log_links, "llink", "w", false, "Write every sent line to console")
}
