package main

import (
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	apiFlag  string
	userFlag string
	roleFlag string
	rootCmd  = &cobra.Command{
		Use:   "billctl",
		Short: "CLI client for the billing service REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Billing service base URL")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "Acting user id (required)")
	rootCmd.PersistentFlags().StringVarP(&roleFlag, "role", "r", "admin", "Acting role (admin, staff, client)")
	_ = rootCmd.MarkPersistentFlagRequired("user")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// client returns a resty client carrying the caller identity headers the
// service's auth middleware expects.
func client() *resty.Client {
	return resty.New().
		SetBaseURL(apiFlag).
		SetHeader("X-User-Id", userFlag).
		SetHeader("X-Role", roleFlag)
}

func printResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("%s: %s", resp.Status(), resp.String())
	}
	_, _ = fmt.Fprintln(os.Stdout, resp.String())
	return nil
}
