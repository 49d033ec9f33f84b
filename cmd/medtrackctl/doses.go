package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	dosesCmd := &cobra.Command{Use: "doses", Short: "Dose operations"}

	var medFlag, dateFlag string
	requireDoseScope := func() error {
		if userFlag == "" || medFlag == "" || dateFlag == "" {
			return fmt.Errorf("--user, --med and --date required")
		}
		return nil
	}
	dosePath := func(idx string) string {
		return fmt.Sprintf("/api/users/%s/medications/%s/doses/%s/%s", userFlag, medFlag, dateFlag, idx)
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the day's dose statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDoseScope(); err != nil {
				return err
			}
			return printResult(client().R().Get(fmt.Sprintf("/api/users/%s/medications/%s/doses/%s", userFlag, medFlag, dateFlag)))
		},
	}
	dosesCmd.AddCommand(statusCmd)

	takeCmd := &cobra.Command{
		Use:   "take DOSE_INDEX",
		Short: "Mark a dose taken (within its action window)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDoseScope(); err != nil {
				return err
			}
			return printResult(client().R().Post(dosePath(args[0]) + "/take"))
		},
	}
	dosesCmd.AddCommand(takeCmd)

	undoCmd := &cobra.Command{
		Use:   "undo DOSE_INDEX",
		Short: "Undo a recorded take",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDoseScope(); err != nil {
				return err
			}
			return printResult(client().R().Post(dosePath(args[0]) + "/undo"))
		},
	}
	dosesCmd.AddCommand(undoCmd)

	dosesCmd.PersistentFlags().StringVarP(&medFlag, "med", "m", "", "Medication ID (required)")
	dosesCmd.PersistentFlags().StringVarP(&dateFlag, "date", "d", "", "Date YYYY-MM-DD (required)")

	rootCmd.AddCommand(dosesCmd)
}
