package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	apiFlag  string
	userFlag string
	rootCmd  = &cobra.Command{
		Use:   "medtrackctl",
		Short: "CLI client for the medtrack REST API",
	}
)

func client() *resty.Client {
	return resty.New().SetBaseURL(apiFlag)
}

// printResult pretty-prints the response body, or fails with the API's error
// message on a non-2xx status.
func printResult(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("http %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	if len(resp.Body()) == 0 {
		fmt.Println("ok")
		return nil
	}
	var buf interface{}
	if err := json.Unmarshal(resp.Body(), &buf); err != nil {
		fmt.Println(string(resp.Body()))
		return nil
	}
	pretty, _ := json.MarshalIndent(buf, "", "  ")
	fmt.Println(string(pretty))
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Medtrack service base URL")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User ID")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
