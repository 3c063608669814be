package cmd

import (
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Short:   "Enable or disable an agent's schedule",
	GroupID: GroupSchedule,
}

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable <agent> <schedule>",
	Short: "Enable a schedule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newManager()
		if err := m.Initialize(); err != nil {
			return err
		}
		return m.EnableSchedule(args[0], args[1])
	},
}

var scheduleDisableCmd = &cobra.Command{
	Use:   "disable <agent> <schedule>",
	Short: "Disable a schedule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newManager()
		if err := m.Initialize(); err != nil {
			return err
		}
		return m.DisableSchedule(args[0], args[1])
	},
}

func init() {
	scheduleCmd.AddCommand(scheduleEnableCmd, scheduleDisableCmd)
	rootCmd.AddCommand(scheduleCmd)
}
