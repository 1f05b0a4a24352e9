package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/kb-api/internal/dto"
	"github.com/noah-isme/kb-api/internal/models"
	"github.com/noah-isme/kb-api/internal/repository"
	"github.com/noah-isme/kb-api/internal/service"
	"github.com/noah-isme/kb-api/pkg/config"
	"github.com/noah-isme/kb-api/pkg/database"
	"github.com/noah-isme/kb-api/pkg/logger"
)

// systemActor performs operator actions issued from the CLI.
var systemActor = models.Actor{ID: "system", Role: models.RoleAdmin}

type rootOptions struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "kb-admin",
		Short:         "Operator tooling for the knowledge base",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			opts.cfg, opts.logger = cfg, logr
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newCreateUserCommand(opts))
	return cmd
}

func (o *rootOptions) connect(ctx context.Context) (*sqlx.DB, error) {
	return database.NewPostgres(ctx, o.cfg.Database)
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			applied, err := database.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}
}

type createUserFlags struct {
	username       string
	password       string
	displayName    string
	role           string
	supervisorType string
}

func (f createUserFlags) request() (dto.CreateUserRequest, error) {
	req := dto.CreateUserRequest{
		Username:    strings.TrimSpace(f.username),
		Password:    f.password,
		DisplayName: strings.TrimSpace(f.displayName),
		Role:        strings.ToLower(strings.TrimSpace(f.role)),
	}
	if req.Username == "" || req.Password == "" {
		return req, errors.New("--username and --password are required")
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}
	if !models.UserRole(req.Role).Valid() {
		return req, fmt.Errorf("unknown role %q", f.role)
	}
	if f.supervisorType != "" {
		st := strings.TrimSpace(f.supervisorType)
		req.SupervisorType = &st
	}
	return req, nil
}

func newCreateUserCommand(opts *rootOptions) *cobra.Command {
	flags := createUserFlags{}
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an admin, supervisor or user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}

			db, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			activity := service.NewActivityService(repository.NewActivityRepository(db), opts.logger)
			users := service.NewUserService(repository.NewUserRepository(db), activity, validator.New(), opts.logger)
			user, err := users.Create(cmd.Context(), systemActor, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.username, "username", "", "login name")
	cmd.Flags().StringVar(&flags.password, "password", "", "initial password")
	cmd.Flags().StringVar(&flags.displayName, "name", "", "display name (defaults to username)")
	cmd.Flags().StringVar(&flags.role, "role", string(models.RoleAdmin), "admin, supervisor or user")
	cmd.Flags().StringVar(&flags.supervisorType, "supervisor-type", "", "supervisor specialisation")
	return cmd
}
