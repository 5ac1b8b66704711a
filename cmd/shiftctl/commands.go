package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/identity"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/store"
)

// app holds what the subcommands share. open is swapped in tests.
type app struct {
	logger *zap.SugaredLogger
	open   func(ctx context.Context) (store.Repos, *sqlx.DB, error)

	repos store.Repos
	db    *sqlx.DB
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "shiftctl",
		Short:         "Operator tasks for the shift service",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			repos, db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			a.repos, a.db = repos, db
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.db != nil {
				_ = a.db.Close()
			}
		},
	}
	root.AddCommand(migrateCmd(a), bootstrapAdminCmd(a), listIdentitiesCmd(a))
	return root
}

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create all tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.db == nil {
				return errors.New("migrate needs a database connection")
			}
			if err := store.EnsureSchema(cmd.Context(), a.db); err != nil {
				return err
			}
			a.logger.Info("schema up to date")
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func bootstrapAdminCmd(a *app) *cobra.Command {
	var in identity.RegisterInput
	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create an admin identity without signing in",
		Long:  "Creates an admin identity. Without --password the password is read from the first line of stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				in.Password = strings.TrimRight(line, "\r\n")
			}
			in.Role = entity.RoleAdmin
			svc := identity.NewService(a.repos.Identities, nil, nil, a.logger)
			u, err := svc.Bootstrap(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.logger.Infow("admin bootstrapped", "username", u.Username)
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %s)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "handle of the admin (required)")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.FullName, "full-name", "", "display name")
	cmd.Flags().StringVar(&in.Password, "password", "", "password; read from stdin when empty")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func listIdentitiesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-identities",
		Short: "Print every identity sorted by handle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.repos.Identities.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USERNAME\tROLE\tEMAIL\tID")
			for _, u := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Username, u.Role, u.Email, u.ID)
			}
			return tw.Flush()
		},
	}
}
