package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/storygrab/igaccounts/internal/domain"
)

func newAccountCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage pool accounts",
	}

	cmd.AddCommand(
		newAccountAddCmd(app),
		newAccountRemoveCmd(app),
		newAccountListCmd(app),
		newAccountBanCmd(app),
		newAccountSetLimitCmd(app),
		newAccountSetCooldownCmd(app),
	)

	return cmd
}

func newAccountAddCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <username> <password>",
		Short: "Register an account, or update the password of an existing one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.AccountID(args[0])
			_, existed := app.pool.Get(id)

			app.pool.AddOrUpdate(cmd.Context(), id, args[1])

			verb := "added"
			if existed {
				verb = "updated"
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "account %s %s\n", id, verb)
			return err
		},
	}
}

func newAccountRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <username>",
		Short: "Remove an account from the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.AccountID(args[0])
			if !app.pool.Remove(cmd.Context(), id) {
				return fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "account %s removed\n", id)
			return err
		},
	}
}

func newAccountListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			current, _ := app.pool.GetCurrent()
			for _, account := range app.pool.List() {
				marker := " "
				if account.ID == current.ID {
					marker = "*"
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\t%d/%d\n",
					marker, account.ID, account.Status, account.RequestCount, account.DailyLimit)
				if err != nil {
					return err
				}
			}

			return nil
		},
	}
}

func newAccountBanCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ban <username>",
		Short: "Mark an account as banned, permanently excluding it from rotation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.AccountID(args[0])
			if !app.pool.MarkBanned(cmd.Context(), id) {
				return fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "account %s banned\n", id)
			return err
		},
	}
}

func newAccountSetLimitCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-limit <username> <requests-per-day>",
		Short: "Set the account's daily request limit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := parsePositiveInt(args[1], "daily limit")
			if err != nil {
				return err
			}

			id := domain.AccountID(args[0])
			if !app.pool.SetDailyLimit(cmd.Context(), id, limit) {
				return fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "account %s daily limit set to %d\n", id, limit)
			return err
		},
	}
}

func newAccountSetCooldownCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-cooldown <username> <hours>",
		Short: "Set the account's cooldown period in hours",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hours, err := parsePositiveInt(args[1], "cooldown hours")
			if err != nil {
				return err
			}

			id := domain.AccountID(args[0])
			if !app.pool.SetCooldownHours(cmd.Context(), id, hours) {
				return fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "account %s cooldown set to %dh\n", id, hours)
			return err
		},
	}
}

func parsePositiveInt(raw, label string) (int, error) {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", label, raw, err)
	}
	if value < 1 {
		return 0, fmt.Errorf("%s must be at least 1, got %d", label, value)
	}

	return value, nil
}
