// Command tuitionctl runs operator tasks against the marketplace database:
// creating indexes, promoting accounts and minting access tokens for manual
// testing.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/config"
	"github.com/iliyamo/tuition-marketplace/internal/database"
	"github.com/iliyamo/tuition-marketplace/internal/logger"
	"github.com/iliyamo/tuition-marketplace/internal/model"
	"github.com/iliyamo/tuition-marketplace/internal/repository"
	"github.com/iliyamo/tuition-marketplace/internal/service"
	"github.com/iliyamo/tuition-marketplace/internal/utils"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "tuitionctl",
		Short:        "Operator commands for the tuition marketplace",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(indexesCmd())
	rootCmd.AddCommand(promoteCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env bundles what every command needs. close must be called once.
type env struct {
	cfg   config.Config
	log   *zap.Logger
	store *database.Store
}

func open(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, err
	}
	store, err := database.Open(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, store: store}, nil
}

func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.store.Close(ctx)
	_ = e.log.Sync()
}

func indexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the unique and lookup indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			e, err := open(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.store.EnsureIndexes(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "indexes ok")
			return nil
		},
	}
}

func promoteCmd() *cobra.Command {
	var email, role, status string
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Change the role or status of an account",
		Example: `  tuitionctl promote --email ops@example.com --role admin
  tuitionctl promote --email spam@example.com --status inactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if role == "" && status == "" {
				return fmt.Errorf("nothing to change: pass --role and/or --status")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			e, err := open(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			var patch model.UserPatch
			if role != "" {
				patch.Role = &role
			}
			if status != "" {
				patch.Status = &status
			}
			users := service.NewUserService(repository.NewUserRepo(e.store), e.cfg.BcryptCost, e.log)
			operator := access.Identity{Email: "tuitionctl", Role: model.RoleAdmin}
			u, err := users.Update(ctx, operator, strings.ToLower(email), patch)
			if err != nil {
				return err
			}
			return printJSON(cmd, u)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&role, "role", "", "new role (student, tutor, admin)")
	cmd.Flags().StringVar(&status, "status", "", "new status (active, inactive)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func tokenCmd() *cobra.Command {
	var email string
	var ttl int
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token carrying the account's stored role",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			e, err := open(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			email = strings.ToLower(strings.TrimSpace(email))
			role, active, err := repository.NewUserRepo(e.store).RoleOf(ctx, email)
			if err != nil {
				return err
			}
			if !active {
				return fmt.Errorf("%s is inactive", email)
			}
			if ttl <= 0 {
				ttl = e.cfg.AccessTTLMin
			}
			tok, err := utils.NewAccessToken(e.cfg.JWTSecret, email, role, ttl)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"token": tok.Token, "role": role, "expires_at": tok.Exp})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "lifetime in minutes (default ACCESS_TOKEN_TTL_MIN)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
