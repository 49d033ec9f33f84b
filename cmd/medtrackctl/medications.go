package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	medsCmd := &cobra.Command{Use: "meds", Short: "Medication operations"}

	var name, dosage, frequency, times, startDate, endDate, notes string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a medication schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			if name == "" || times == "" || startDate == "" {
				return fmt.Errorf("--name, --times and --start required")
			}
			payload := map[string]interface{}{
				"name":      name,
				"dosage":    dosage,
				"frequency": frequency,
				"times":     strings.Split(times, ","),
				"startDate": startDate,
			}
			if endDate != "" {
				payload["endDate"] = endDate
			}
			if notes != "" {
				payload["notes"] = notes
			}
			return printResult(client().R().SetBody(payload).Post("/api/users/" + userFlag + "/medications"))
		},
	}
	addCmd.Flags().StringVarP(&name, "name", "n", "", "Medication name (required)")
	addCmd.Flags().StringVarP(&dosage, "dosage", "d", "", "Dosage, e.g. 500mg")
	addCmd.Flags().StringVarP(&frequency, "frequency", "f", "daily", "daily, weekly or monthly")
	addCmd.Flags().StringVar(&times, "times", "", "Comma-separated dose times, e.g. 08:00:00,20:00:00 (required)")
	addCmd.Flags().StringVar(&startDate, "start", "", "Start date YYYY-MM-DD (required)")
	addCmd.Flags().StringVar(&endDate, "end", "", "End date YYYY-MM-DD")
	addCmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	medsCmd.AddCommand(addCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List medications",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			return printResult(client().R().Get("/api/users/" + userFlag + "/medications"))
		},
	}
	medsCmd.AddCommand(listCmd)

	getCmd := &cobra.Command{
		Use:   "get MEDICATION_ID",
		Short: "Get a medication",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			return printResult(client().R().Get("/api/users/" + userFlag + "/medications/" + args[0]))
		},
	}
	medsCmd.AddCommand(getCmd)

	rmCmd := &cobra.Command{
		Use:   "rm MEDICATION_ID",
		Short: "Delete a medication and its doses and reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			return printResult(client().R().Delete("/api/users/" + userFlag + "/medications/" + args[0]))
		},
	}
	medsCmd.AddCommand(rmCmd)

	rootCmd.AddCommand(medsCmd)
}
