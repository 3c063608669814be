package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/edspencer/herdctl-sub001/internal/fleet"
)

var (
	triggerSchedule string
	triggerPrompt   string
	triggerBypass   bool

	cancelTimeout time.Duration

	forkPrompt string
)

var triggerCmd = &cobra.Command{
	Use:     "trigger <agent>",
	Short:   "Manually trigger a job for an agent",
	Args:    cobra.ExactArgs(1),
	GroupID: GroupJobs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newManager()
		if err := m.Initialize(); err != nil {
			return err
		}
		job, err := m.Trigger(args[0], triggerSchedule, fleet.TriggerOptions{
			Prompt:            triggerPrompt,
			BypassConcurrency: triggerBypass,
		})
		if err != nil {
			return err
		}
		return printResult(job)
	},
}

var cancelCmd = &cobra.Command{
	Use:     "cancel <job-id>",
	Short:   "Cancel a running job",
	Args:    cobra.ExactArgs(1),
	GroupID: GroupJobs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newManager()
		if err := m.Initialize(); err != nil {
			return err
		}
		res, err := m.Cancel(args[0], cancelTimeout)
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

var forkCmd = &cobra.Command{
	Use:     "fork <parent-job-id>",
	Short:   "Fork a new job from a terminal parent job, inheriting its session",
	Args:    cobra.ExactArgs(1),
	GroupID: GroupJobs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newManager()
		if err := m.Initialize(); err != nil {
			return err
		}
		job, err := m.Fork(args[0], forkPrompt)
		if err != nil {
			return err
		}
		return printResult(job)
	},
}

func init() {
	triggerCmd.Flags().StringVar(&triggerSchedule, "schedule", "", "fire a specific named schedule instead of an ad-hoc prompt")
	triggerCmd.Flags().StringVar(&triggerPrompt, "prompt", "", "prompt to run (overrides the schedule's prompt when --schedule is set)")
	triggerCmd.Flags().BoolVar(&triggerBypass, "bypass-concurrency", false, "ignore the agent's max_concurrent limit")

	cancelCmd.Flags().DurationVar(&cancelTimeout, "timeout", 10*time.Second, "how long to wait for graceful shutdown before forcing it")

	forkCmd.Flags().StringVar(&forkPrompt, "prompt", "", "prompt for the forked job")

	rootCmd.AddCommand(triggerCmd, cancelCmd, forkCmd)
}
