package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	app "github.com/platformplatform/account-api/pkg/api"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "accountctl",
		Short:        "Maintenance commands of the account api",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCmd(),
		newProcessEventsCmd(),
		newSendRemindersCmd(),
		newEmulateWebhookCmd(),
	)
	return rootCmd
}

func newMigrateCmd() *cobra.Command {
	var rollback int
	var showStatus bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner := app.NewApp().Migrations()
			switch {
			case showStatus:
				st, err := runner.Status()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), st)
				return err
			case rollback != 0:
				return runner.Rollback(rollback)
			}
			return runner.Run()
		},
	}

	cmd.Flags().IntVar(&rollback, "rollback", 0, "revert this many applied migrations instead")
	cmd.Flags().BoolVar(&showStatus, "status", false, "print the schema version and exit")
	return cmd
}

func newProcessEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process-events <customer-id>",
		Short: "Apply pending stripe events of the customer now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.NewApp().ProcessCustomerEvents(context.Background(), args[0])
			if err != nil {
				return errors.Wrap(err, "failed to process events")
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "processed %d events (%d failed), tenant %d is %s\n",
				res.Processed, res.Failed, res.TenantID, res.TenantState)
			return err
		},
	}
}

func newSendRemindersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-reminders",
		Short: "Remind past due tenants and suspend those past the grace period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := app.NewApp().SendPaymentReminders(context.Background())
			if err != nil {
				return errors.Wrap(err, "failed to send reminders")
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "reminded %d, suspended %d, reactivated %d, requeued %d customers\n",
				res.Reminded, res.Suspended, res.Reactivated, res.Requeued)
			return err
		},
	}
}
