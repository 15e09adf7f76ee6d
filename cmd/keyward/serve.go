// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/keyward/keyward/internal/auth"
	authpg "github.com/keyward/keyward/internal/auth/postgres"
	"github.com/keyward/keyward/internal/config"
	"github.com/keyward/keyward/internal/logging"
	"github.com/keyward/keyward/internal/observability"
	"github.com/keyward/keyward/internal/store"
	"github.com/keyward/keyward/internal/web"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth API server",
		Long: `Start the HTTP API server serving registration, login, and the
protected session routes, plus the metrics/health side listener.`,
		RunE: runServe,
	}

	// Flag names double as koanf keys.
	cmd.Flags().String("http.addr", config.DefaultHTTPAddr, "API listen address")
	cmd.Flags().String("metrics.addr", config.DefaultMetricsAddr, "metrics/health listen address (empty = disabled)")
	cmd.Flags().String("log.format", config.DefaultLogFormat, "log format (json or text)")
	cmd.Flags().Int("token.lifetime_days", config.DefaultTokenLifetimeDays, "session token lifetime in days")
	cmd.Flags().Bool("token.refresh_on_verify", true, "re-issue the token on every verified request")
	cmd.Flags().Bool("token.cookie_secure", true, "set the Secure attribute on the session cookie")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("keyward", version, cfg.Log.Format)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	accounts := authpg.NewAccountRepository(pool)
	rules := authpg.NewPasswordRuleRepository(pool)

	passwords, err := auth.NewPasswordValidator(rules)
	if err != nil {
		return err
	}

	policy := auth.DefaultUsernamePolicy()
	if len(cfg.Username.Risky) > 0 {
		policy.Risky = cfg.Username.Risky
	}
	if len(cfg.Username.Reserved) > 0 {
		policy.Reserved = cfg.Username.Reserved
	}
	usernames, err := auth.NewUsernameValidator(accounts, policy)
	if err != nil {
		return err
	}

	svc, err := auth.NewService(accounts, passwords, usernames, auth.NewArgon2idHasher(), logger)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenEngine(auth.TokenEngineConfig{
		Secret:          []byte(cfg.Token.Secret),
		Lifetime:        cfg.Token.Lifetime(),
		IssuedAtSkew:    cfg.Token.IssuedAtSkew(),
		CookieSecure:    cfg.Token.CookieSecure,
		RefreshOnVerify: cfg.Token.RefreshOnVerify,
	}, accounts)
	if err != nil {
		return err
	}

	var metrics *observability.Metrics
	var obs *observability.Server
	var obsErrCh <-chan error
	if cfg.Metrics.Addr != "" {
		obs = observability.NewServer(cfg.Metrics.Addr, func() bool {
			return pool.Ping(ctx) == nil
		})
		obsErrCh, err = obs.Start()
		if err != nil {
			return err
		}
		metrics = obs.Metrics()
	}

	api, err := web.NewServer(cfg.HTTP.Addr, svc, tokens, metrics, logger)
	if err != nil {
		return err
	}
	apiErrCh, err := api.Start()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr := <-apiErrCh:
		if serveErr != nil {
			return oops.Code("SERVER_FAILED").Wrap(serveErr)
		}
	case obsErr := <-obsErrCh:
		if obsErr != nil {
			return oops.Code("SERVER_FAILED").Wrap(obsErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := api.Stop(shutdownCtx); err != nil {
		return err
	}
	if obs != nil {
		if err := obs.Stop(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
