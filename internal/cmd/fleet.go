package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edspencer/herdctl-sub001/internal/fleet"
)

func newManager() *fleet.Manager {
	return fleet.New(fleet.Options{
		RootPath: rootPath,
		StateDir: stateDir,
		EnvLookup: func(name string) (string, bool) {
			v, ok := os.LookupEnv(name)
			return v, ok
		},
	})
}

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "Start the fleet supervisor and block until signalled",
	GroupID: GroupFleet,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newManager()
		if err := m.Initialize(); err != nil {
			return err
		}
		if err := m.Start(); err != nil {
			return err
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		return m.Stop()
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the fleet's current status",
	GroupID: GroupFleet,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newManager()
		if err := m.Initialize(); err != nil {
			return err
		}
		return printResult(m.GetFleetStatus())
	},
}

var reloadCmd = &cobra.Command{
	Use:     "reload",
	Short:   "Reload the fleet config from disk and apply hot-reload changes",
	GroupID: GroupFleet,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newManager()
		if err := m.Initialize(); err != nil {
			return err
		}
		res, err := m.Reload()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "reloaded: %d agents, %d changes\n", res.AgentCount, len(res.Changes))
		return printResult(res)
	},
}

func init() {
	rootCmd.AddCommand(runCmd, statusCmd, reloadCmd)
}
