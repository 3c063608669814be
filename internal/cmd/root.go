// Package cmd implements herdctl's command-line interface: a thin cobra
// wrapper around internal/fleet.Manager. Every subcommand initializes a
// Manager against the configured root fleet file and calls straight through;
// none of the fleet's actual decision-making lives here.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootPath  string
	stateDir  string
	outputRaw bool
)

var rootCmd = &cobra.Command{
	Use:   "herdctl",
	Short: "herdctl manages a fleet of autonomous Claude agents",
	Long: `herdctl supervises a fleet of autonomous Claude-powered agents: scheduling
their recurring runs, executing and monitoring jobs, and exposing the fleet's
state to operators and other tooling.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

const (
	GroupFleet    = "fleet"
	GroupJobs     = "jobs"
	GroupSchedule = "schedule"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootPath, "root", "fleet.yaml", "path to the root fleet config file")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "state directory (default: $HERDCTL_STATE_DIR, else .herdctl)")
	rootCmd.PersistentFlags().BoolVar(&outputRaw, "json", false, "print machine-readable JSON output")

	rootCmd.AddGroup(
		&cobra.Group{ID: GroupFleet, Title: "Fleet:"},
		&cobra.Group{ID: GroupJobs, Title: "Jobs:"},
		&cobra.Group{ID: GroupSchedule, Title: "Schedules:"},
	)
	rootCmd.SetHelpCommandGroupID(GroupFleet)
	rootCmd.SetCompletionCommandGroupID(GroupFleet)
}

// Execute runs the root command and returns a process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "herdctl:", err)
		return 1
	}
	return 0
}

// printResult renders v as indented JSON when --json is set, otherwise via %+v.
func printResult(v interface{}) error {
	if outputRaw {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Printf("%+v\n", v)
	return nil
}
