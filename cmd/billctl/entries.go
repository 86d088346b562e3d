package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	entriesCmd := &cobra.Command{Use: "entries", Short: "Time entry operations"}

	// list
	var caseID, from, to, status string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List time entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client().R().SetQueryParam("caseId", caseID)
			if from != "" {
				req.SetQueryParam("from", from)
			}
			if to != "" {
				req.SetQueryParam("to", to)
			}
			if status != "" {
				req.SetQueryParam("billingStatus", status)
			}
			return printResponse(req.Get("/api/time-entries"))
		},
	}
	listCmd.Flags().StringVarP(&caseID, "case", "c", "", "Case ID filter")
	listCmd.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&status, "status", "", "Billing status filter (unbilled, invoiced, voided)")
	entriesCmd.AddCommand(listCmd)

	// export
	var exportCase, exportFrom, exportTo, outFile string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export time entries as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client().R()
			if exportCase != "" {
				req.SetQueryParam("caseId", exportCase)
			}
			if exportFrom != "" {
				req.SetQueryParam("from", exportFrom)
			}
			if exportTo != "" {
				req.SetQueryParam("to", exportTo)
			}
			resp, err := req.Get("/api/time-entries/export")
			if err != nil {
				return err
			}
			if resp.IsError() {
				return fmt.Errorf("%s: %s", resp.Status(), resp.String())
			}
			if outFile != "" {
				return os.WriteFile(outFile, resp.Body(), 0o644)
			}
			_, _ = os.Stdout.Write(resp.Body())
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&exportCase, "case", "c", "", "Case ID filter")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End date (YYYY-MM-DD)")
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "Write CSV to file instead of stdout")
	entriesCmd.AddCommand(exportCmd)

	rootCmd.AddCommand(entriesCmd)

	// timer
	timerCmd := &cobra.Command{Use: "timer", Short: "Timer operations"}

	var timerCase, timerActivity string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if timerCase == "" {
				return fmt.Errorf("--case required")
			}
			return printResponse(client().R().
				SetBody(map[string]string{"caseId": timerCase, "activityType": timerActivity}).
				Post("/api/time-entries/timer/start"))
		},
	}
	startCmd.Flags().StringVarP(&timerCase, "case", "c", "", "Case ID (required)")
	startCmd.Flags().StringVar(&timerActivity, "activity", "research", "Activity type")
	timerCmd.AddCommand(startCmd)

	var sessionID, description string
	stopCmd := &cobra.Command{
		Use:   "stop SESSION_ID",
		Short: "Stop a timer and record the time entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID = args[0]
			body := map[string]string{"sessionId": sessionID}
			if description != "" {
				body["description"] = description
			}
			return printResponse(client().R().SetBody(body).Post("/api/time-entries/timer/stop"))
		},
	}
	stopCmd.Flags().StringVarP(&description, "description", "d", "", "Entry description")
	timerCmd.AddCommand(stopCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running timer, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResponse(client().R().Get("/api/time-entries/timer"))
		},
	}
	timerCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(timerCmd)
}
