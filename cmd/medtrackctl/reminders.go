package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	remindersCmd := &cobra.Command{Use: "reminders", Short: "Reminder operations"}

	var medFlag, timeFlag, dateFlag, typeFlag string
	var doseIndex int
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Create or move a reminder for a dose slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" || medFlag == "" || timeFlag == "" || dateFlag == "" {
				return fmt.Errorf("--user, --med, --time and --date required")
			}
			payload := map[string]interface{}{
				"medicationId": medFlag,
				"doseIndex":    doseIndex,
				"reminderTime": timeFlag,
				"date":         dateFlag,
				"type":         typeFlag,
			}
			return printResult(client().R().SetBody(payload).Put("/api/users/" + userFlag + "/reminders"))
		},
	}
	setCmd.Flags().StringVarP(&medFlag, "med", "m", "", "Medication ID (required)")
	setCmd.Flags().IntVarP(&doseIndex, "dose", "i", 0, "Dose index within the day's schedule")
	setCmd.Flags().StringVarP(&timeFlag, "time", "t", "", "Reminder time HH:MM:SS (required)")
	setCmd.Flags().StringVarP(&dateFlag, "date", "d", "", "Date YYYY-MM-DD (required)")
	setCmd.Flags().StringVar(&typeFlag, "type", "single", "single or daily")
	remindersCmd.AddCommand(setCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			return printResult(client().R().Get("/api/users/" + userFlag + "/reminders"))
		},
	}
	remindersCmd.AddCommand(listCmd)

	rmCmd := &cobra.Command{
		Use:   "rm REMINDER_ID",
		Short: "Delete a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			return printResult(client().R().Delete("/api/users/" + userFlag + "/reminders/" + args[0]))
		},
	}
	remindersCmd.AddCommand(rmCmd)

	rootCmd.AddCommand(remindersCmd)
}
