package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/cashback-scout/internal/server"
)

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token <client-id>",
	Short: "Sign a bearer token for an extension install",
	Long:  "Signs an HS256 token with auth.secret that the extension sends to the API when auth.enabled is set.",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssueToken,
}

func init() {
	rootCmd.AddCommand(issueTokenCmd)
}

func runIssueToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is not set: set CASHBACK_AUTH_SECRET")
	}

	token, expires, err := server.NewJWTService(cfg.Auth).IssueToken(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, token)
	if verbose {
		_, _ = fmt.Fprintf(out, "expires %s\n", expires.Format(time.RFC3339))
	}
	return nil
}
