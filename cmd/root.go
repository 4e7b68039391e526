package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reconciliation",
	Short: "Payment reconciliation microservice",
	Long:  "A payment-state reconciliation microservice for mentoring session bookings: gateway webhooks, client polls, manual verification, and lifecycle jobs.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
