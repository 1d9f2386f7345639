package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/werawoot/Krua-Thai1-sub006/internal/database"
	"github.com/werawoot/Krua-Thai1-sub006/internal/models"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := opts.setup(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := database.Migrate(ctx, e.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations completed")
			return nil
		},
	}
}

func newSeedCmd(opts *globalOptions) *cobra.Command {
	var demo bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed staff accounts, postal zones and (optionally) demo subscriptions",
		Long: `Seed the database. Each table is only seeded when it is empty, so the
command is safe to run repeatedly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := opts.setup(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := database.Migrate(ctx, e.db); err != nil {
				return err
			}
			if err := database.SeedUsers(ctx, e.db, e.logger); err != nil {
				return fmt.Errorf("seed users: %w", err)
			}
			if err := database.SeedZones(ctx, e.db, e.logger); err != nil {
				return fmt.Errorf("seed zones: %w", err)
			}
			if demo {
				if err := database.SeedDemo(ctx, e.db, e.logger); err != nil {
					return fmt.Errorf("seed demo subscriptions: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Seeding completed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", true, "Also create demo customers with active subscriptions")
	return cmd
}

func newCreateAdminCmd(opts *globalOptions) *cobra.Command {
	var (
		email, password, firstName, lastName string
		resetPassword                        bool
	)

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account, or reset its password",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			if len(password) < 8 {
				return errors.New("password must be at least 8 characters")
			}

			ctx := cmd.Context()
			e, err := opts.setup(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}

			existing, err := database.GetUserByEmail(ctx, e.db, email)
			switch {
			case err == nil && !resetPassword:
				return fmt.Errorf("user %s already exists (use --reset-password to change its password)", existing.Email)
			case err == nil:
				if err := database.UpdateUserPassword(ctx, e.db, existing.ID, string(hash)); err != nil {
					return err
				}
				e.logger.Info("password reset", zap.String("email", existing.Email))
				fmt.Fprintf(cmd.OutOrStdout(), "Password reset for %s\n", existing.Email)
				return nil
			case !errors.Is(err, database.ErrNotFound):
				return err
			}

			user := &models.User{
				Email:     email,
				Password:  string(hash),
				FirstName: firstName,
				LastName:  lastName,
				Role:      models.RoleAdmin,
			}
			if err := database.CreateUser(ctx, e.db, user); err != nil {
				return err
			}
			e.logger.Info("admin created", zap.String("email", user.Email), zap.String("id", user.ID))
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	cmd.Flags().StringVar(&password, "password", "", "Login password (min 8 characters)")
	cmd.Flags().StringVar(&firstName, "first-name", "Admin", "First name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
	cmd.Flags().BoolVar(&resetPassword, "reset-password", false, "Reset the password when the account exists")
	return cmd
}
