package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/database"
	"carbon-scribe/credit-registry-backend/internal/events"
	"carbon-scribe/credit-registry-backend/internal/marketplace"
	"carbon-scribe/credit-registry-backend/internal/middleware"
)

// sweepCmd expires overdue listings once, for deployments that schedule the
// sweep externally instead of running it inside the server.
func sweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-listings",
		Short: "Expire marketplace listings whose expiry date has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			stores, err := database.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer stores.Close(context.Background())

			bus := events.NewBus(logger, 0, events.NewLogSink(logger))
			defer bus.Close()

			service := marketplace.NewService(stores, bus, cfg.Marketplace.DefaultCurrency, logger)
			expired, err := service.ExpireListings(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			logger.Info("Listing sweep finished", zap.Int("expired", expired))
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d listing(s)\n", expired)
			return nil
		},
	}
}

// migrateCmd prepares the configured backend: the records table for
// postgres, the table for dynamodb. Opening the store does the work.
func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the record store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			stores, err := database.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			logger.Info("Record store ready", zap.String("driver", cfg.Database.Driver))
			return stores.Close(context.Background())
		},
	}
}

func tokenCmd(configPath *string) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a signed API access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if cfg.Security.JWTSecret == "" {
				return fmt.Errorf("security.jwt_secret is not configured")
			}
			token, err := middleware.NewAuthenticator(cfg.Security.JWTSecret, true).Issue(args[0], role, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "verifier", "Role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
