package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	invoicesCmd := &cobra.Command{Use: "invoices", Short: "Invoice operations"}

	var genCase, genClient, genFrom, genTo string
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a draft invoice from unbilled entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if genCase == "" || genClient == "" || genFrom == "" || genTo == "" {
				return fmt.Errorf("--case, --client, --from and --to required")
			}
			return printResponse(client().R().
				SetBody(map[string]string{
					"caseId":   genCase,
					"clientId": genClient,
					"from":     genFrom,
					"to":       genTo,
				}).
				Post("/api/invoices/generate"))
		},
	}
	generateCmd.Flags().StringVarP(&genCase, "case", "c", "", "Case ID (required)")
	generateCmd.Flags().StringVar(&genClient, "client", "", "Client ID (required)")
	generateCmd.Flags().StringVar(&genFrom, "from", "", "Range start date, YYYY-MM-DD (required)")
	generateCmd.Flags().StringVar(&genTo, "to", "", "Range end date, YYYY-MM-DD (required)")
	invoicesCmd.AddCommand(generateCmd)

	var listCase string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices for a case",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listCase == "" {
				return fmt.Errorf("--case required")
			}
			return printResponse(client().R().
				SetQueryParam("caseId", listCase).
				Get("/api/invoices"))
		},
	}
	listCmd.Flags().StringVarP(&listCase, "case", "c", "", "Case ID (required)")
	invoicesCmd.AddCommand(listCmd)

	getCmd := &cobra.Command{
		Use:   "get INVOICE_ID",
		Short: "Fetch a single invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResponse(client().R().Get("/api/invoices/" + args[0]))
		},
	}
	invoicesCmd.AddCommand(getCmd)

	sendCmd := &cobra.Command{
		Use:   "send INVOICE_ID",
		Short: "Mark a draft invoice as sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResponse(client().R().Post("/api/invoices/" + args[0] + "/send"))
		},
	}
	invoicesCmd.AddCommand(sendCmd)

	var amount string
	payCmd := &cobra.Command{
		Use:   "pay INVOICE_ID",
		Short: "Record payment of an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if amount == "" {
				return fmt.Errorf("--amount required")
			}
			return printResponse(client().R().
				SetBody(map[string]string{"amount": amount}).
				Post("/api/invoices/" + args[0] + "/payment"))
		},
	}
	payCmd.Flags().StringVar(&amount, "amount", "", "Payment amount, e.g. 425.43 (required)")
	invoicesCmd.AddCommand(payCmd)

	voidCmd := &cobra.Command{
		Use:   "void INVOICE_ID",
		Short: "Void an invoice and release its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResponse(client().R().Post("/api/invoices/" + args[0] + "/void"))
		},
	}
	invoicesCmd.AddCommand(voidCmd)

	rootCmd.AddCommand(invoicesCmd)

	var statsCase, statsFrom, statsTo string
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show billing statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client().R()
			if statsCase != "" {
				req.SetQueryParam("caseId", statsCase)
			}
			if statsFrom != "" {
				req.SetQueryParam("from", statsFrom)
			}
			if statsTo != "" {
				req.SetQueryParam("to", statsTo)
			}
			return printResponse(req.Get("/api/invoices/stats"))
		},
	}
	statsCmd.Flags().StringVarP(&statsCase, "case", "c", "", "Case ID filter")
	statsCmd.Flags().StringVar(&statsFrom, "from", "", "Start date (YYYY-MM-DD)")
	statsCmd.Flags().StringVar(&statsTo, "to", "", "End date (YYYY-MM-DD)")
	rootCmd.AddCommand(statsCmd)
}
