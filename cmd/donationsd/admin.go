package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-donations/adapters/gocommand"
	donationcommand "github.com/goliatone/go-donations/command"
	"github.com/goliatone/go-donations/core"
	"github.com/goliatone/go-donations/query"
)

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the donation schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, _, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func approveCmd(a *app) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "approve [transaction-id]",
		Short: "Approve a transaction that was logged with errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			msg := donationcommand.ApproveTransactionMessage{TransactionID: args[0], Approved: !revoke}
			if err := gocommand.Dispatch(cmd.Context(), msg); err != nil {
				return err
			}
			state := "approved"
			if revoke {
				state = "revoked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transaction %s %s\n", args[0], state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "clear the approval instead of setting it")
	return cmd
}

func settingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect or change stored settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set [key] [value]",
		Short: "Store a setting value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			msg := donationcommand.UpdateSettingMessage{Key: args[0], Value: args[1]}
			if err := gocommand.Dispatch(cmd.Context(), msg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", args[0], args[1])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, _, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			settings, err := rt.service.Settings().Load(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%t\n", core.SettingIPNEnable, settings.IPNEnable)
			fmt.Fprintf(w, "%s\t%t\n", core.SettingIPNLogging, settings.IPNLogging)
			fmt.Fprintf(w, "%s\t%t\n", core.SettingSandboxEnable, settings.SandboxEnable)
			fmt.Fprintf(w, "%s\t%s\n", core.SettingAccountID, settings.AccountID)
			fmt.Fprintf(w, "%s\t%s\n", core.SettingSandboxAddress, settings.SandboxAddress)
			fmt.Fprintf(w, "%s\t%t\n", core.SettingAutogroupEnable, settings.AutogroupEnable)
			fmt.Fprintf(w, "%s\t%d\n", core.SettingGroupID, settings.GroupID)
			fmt.Fprintf(w, "%s\t%t\n", core.SettingGroupAsDefault, settings.GroupAsDefault)
			fmt.Fprintf(w, "%s\t%v\n", core.SettingMinBeforeGroup, settings.MinBeforeGroup)
			return w.Flush()
		},
	})
	return cmd
}

func overviewCmd(a *app) *cobra.Command {
	var test bool
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Print donation totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, _, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := gocommand.Query[query.GetOverviewMessage, core.OverviewStats](cmd.Context(), query.GetOverviewMessage{Test: test})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "transactions\t%d\n", stats.TransactionsCount)
			fmt.Fprintf(w, "known donors\t%d\n", stats.KnownDonorsCount)
			fmt.Fprintf(w, "anonymous donors\t%d\n", stats.AnonymousDonorsCount)
			fmt.Fprintf(w, "raised\t%.2f\n", stats.RaisedAmount)
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&test, "sandbox", false, "report sandbox totals")
	return cmd
}

func auditCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the most recent audit entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, _, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := gocommand.Query[query.ListAuditMessage, []core.AuditEntry](cmd.Context(), query.ListAuditMessage{Limit: limit})
			if err != nil {
				return err
			}
			for _, entry := range entries {
				marker := " "
				if entry.IsError {
					marker = "!"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", entry.CreatedAt.UTC().Format(time.RFC3339), marker, entry.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries")
	return cmd
}

func usersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage the local member directory",
	}

	var group int64
	var makeDefault bool
	add := &cobra.Command{
		Use:   "add [username] [email]",
		Short: "Register a member so donations can be matched to them",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			users := rt.factory.Users()
			user, err := users.SaveUser(cmd.Context(), core.UserInfo{
				Username: strings.TrimSpace(args[0]),
				Email:    strings.TrimSpace(args[1]),
			})
			if err != nil {
				return err
			}
			if group > 0 {
				if err := users.AddUserToGroup(cmd.Context(), group, user.ID, makeDefault); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s saved with id %d\n", user.Username, user.ID)
			return nil
		},
	}
	add.Flags().Int64Var(&group, "group", 0, "also add the member to this group")
	add.Flags().BoolVar(&makeDefault, "default", false, "make the group the member's default")
	cmd.AddCommand(add)
	return cmd
}
