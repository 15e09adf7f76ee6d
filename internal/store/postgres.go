// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package store provides the PostgreSQL connection pool and schema
// migrations for Keyward.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry parameters. The database is commonly still starting
// when the service comes up, so the initial ping retries with backoff.
const (
	connectBaseDelay  = 500 * time.Millisecond
	connectMaxRetries = 6
)

// Connect opens a pgx pool for dsn and verifies connectivity with a
// bounded fibonacci backoff before returning it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").
			With("operation", "parse database url").
			Wrap(err)
	}

	backoff := retry.WithMaxRetries(connectMaxRetries, retry.NewFibonacci(connectBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			Wrap(err)
	}

	return pool, nil
}
