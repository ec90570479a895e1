package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"workblix/internal/billing"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	apiURL     string
	appURL     string
	authToken  string
	userIDFlag string
	emailFlag  string
	customerID string
)

//nolint:gochecknoglobals // Cobra boilerplate
var billingCmd = &cobra.Command{
	Use:   "billing",
	Short: "Create checkout and portal sessions against a running service",
}

//nolint:gochecknoglobals // Cobra boilerplate
var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Create a checkout session for the Pro plan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		res := newSessionClient().CreateCheckoutSession(ctx, userIDFlag, emailFlag, authToken)
		return printSession(cmd, res)
	},
}

//nolint:gochecknoglobals // Cobra boilerplate
var portalCmd = &cobra.Command{
	Use:   "portal",
	Short: "Create a customer portal session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		res := newSessionClient().CreatePortalSession(ctx, customerID, authToken)
		return printSession(cmd, res)
	},
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	billingCmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:3000", "Service base URL")
	billingCmd.PersistentFlags().StringVar(&appURL, "app", "http://localhost:5173", "Frontend base URL for redirects")
	billingCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("WORKBLIX_TOKEN"), "Access token of the signed-in user")

	checkoutCmd.Flags().StringVar(&userIDFlag, "user", "", "Auth user id")
	checkoutCmd.Flags().StringVar(&emailFlag, "email", "", "Customer email")
	_ = checkoutCmd.MarkFlagRequired("user")
	portalCmd.Flags().StringVar(&customerID, "customer", "", "Payment processor customer id")
	_ = portalCmd.MarkFlagRequired("customer")

	billingCmd.AddCommand(checkoutCmd, portalCmd)
	rootCmd.AddCommand(billingCmd)
}

func newSessionClient() *billing.SessionClient {
	return billing.NewSessionClient(apiURL, appURL)
}

func printSession(cmd *cobra.Command, res billing.SessionResult) error {
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	if !res.OK() {
		return fmt.Errorf("session not created: %s", res.Error)
	}
	return nil
}
