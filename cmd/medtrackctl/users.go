package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	usersCmd := &cobra.Command{Use: "users", Short: "User operations"}

	var email, name, tz, pushToken string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email required")
			}
			payload := map[string]interface{}{"email": email}
			if name != "" {
				payload["displayName"] = name
			}
			if tz != "" {
				payload["timeZone"] = tz
			}
			if pushToken != "" {
				payload["pushToken"] = pushToken
			}
			return printResult(client().R().SetBody(payload).Post("/api/users"))
		},
	}
	createCmd.Flags().StringVarP(&email, "email", "e", "", "User email (required)")
	createCmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	createCmd.Flags().StringVarP(&tz, "tz", "t", "", "Time zone (defaults UTC)")
	createCmd.Flags().StringVar(&pushToken, "push-token", "", "Push notification token")
	_ = createCmd.MarkFlagRequired("email")
	usersCmd.AddCommand(createCmd)

	getCmd := &cobra.Command{
		Use:   "get USER_ID",
		Short: "Get user by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(client().R().Get("/api/users/" + args[0]))
		},
	}
	usersCmd.AddCommand(getCmd)

	rmCmd := &cobra.Command{
		Use:   "rm USER_ID",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(client().R().Delete("/api/users/" + args[0]))
		},
	}
	usersCmd.AddCommand(rmCmd)

	rootCmd.AddCommand(usersCmd)
}
