package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use: "login <email>",
		Short: "Register and activate a demo account",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd.Context())
			email := args[0]

			token, err := app.Client.Login(cmd.Context(), email, "")
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			id := app.Accounts.RegisterExisting(email, displayName, app.Client)
			if err := app.Creds.Store(id, token); err != nil {
				return fmt.Errorf("storing credential: %w", err)
			}

			fmt.Printf("logged in %s as account %s\n", email, id)

			return nil
		},
	}

	cmd.Flags().StringVar(&displayName, "name", "", "display name for the account")

	return cmd
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use: "whoami",
		Short: "Show the active account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd.Context())

			acct, ok := app.Accounts.Active()
			if !ok {
				fmt.Println("no active account")
				return nil
			}

			fmt.Printf("%s (%s) id=%s\n", acct.DisplayName, acct.Email, acct.ID)

			return nil
		},
	}
}
