package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/AppCenter/internal/bootstrap"
	"github.com/dharsanguruparan/AppCenter/internal/config"
	"github.com/dharsanguruparan/AppCenter/internal/logging"
	"github.com/dharsanguruparan/AppCenter/internal/model"
	"github.com/dharsanguruparan/AppCenter/internal/sweeper"
	"github.com/dharsanguruparan/AppCenter/internal/users"
)

// withRuntime loads configuration, opens the services and hands them to fn.
func withRuntime(ctx context.Context, fn func(*bootstrap.Runtime) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rt, err := bootstrap.Open(ctx, cfg, logging.New(cfg.LogLevel, cfg.LogFormat))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				if rt.Config.Store != config.StorePostgres {
					return fmt.Errorf("migrate needs APPCENTER_STORE=%s, got %q", config.StorePostgres, rt.Config.Store)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			})
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default super admin and admin accounts if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				if err := rt.Users.EnsureDefaults(cmd.Context(), rt.Config.SuperAdmin, rt.Config.Admin); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "default accounts ready: %s, %s\n", rt.Config.SuperAdmin.Username, rt.Config.Admin.Username)
				return nil
			})
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire staged uploads older than APPCENTER_TEMP_TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				s, err := sweeper.New(rt.Staging, rt.Config.TempTTL, rt.Config.SweepSchedule, rt.Logger)
				if err != nil {
					return err
				}
				n, err := s.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expired %d staged file(s)\n", n)
				return nil
			})
		},
	}
}

func newAppsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Manage applications",
	}
	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every application, its versions and stored binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete all applications without --yes")
			}
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				n, err := rt.Catalog.ClearAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d application(s)\n", n)
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	cmd.AddCommand(clearCmd)
	return cmd
}

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts",
	}
	var in users.Credentials
	var role string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account on behalf of the configured super admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Role = model.Role(role)
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				ctx := cmd.Context()
				if err := rt.Users.EnsureDefaults(ctx, rt.Config.SuperAdmin, rt.Config.Admin); err != nil {
					return err
				}
				root, err := rt.Store.GetUserByLogin(ctx, rt.Config.SuperAdmin.Username)
				if err != nil {
					return fmt.Errorf("load super admin: %w", err)
				}
				var u *model.User
				if in.Role == model.RoleUser {
					u, err = rt.Users.Register(ctx, in)
				} else {
					u, err = rt.Users.Create(ctx, root, in)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", u.Role, u.Username, u.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&in.Username, "username", "", "Login name")
	create.Flags().StringVar(&in.Email, "email", "", "Email address")
	create.Flags().StringVar(&in.Password, "password", "", "Initial password")
	create.Flags().StringVar(&role, "role", string(model.RoleAdmin), "admin or user")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")
	cmd.AddCommand(create)
	return cmd
}
