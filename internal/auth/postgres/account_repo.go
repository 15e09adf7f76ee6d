// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/auth"
)

// DB is the narrow pgx surface the repositories need. Both *pgxpool.Pool
// and pgxmock satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a new account with the default role and returns the
// persisted row. A username collision maps to auth.ErrDuplicate.
func (r *AccountRepository) Create(ctx context.Context, username, passwordHash string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING user_id, username, password_hash, user_role_id, created_at
	`, username, passwordHash)

	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, oops.Code("ACCOUNT_USERNAME_TAKEN").
				With("username", username).
				Wrap(auth.ErrDuplicate)
		}
		return nil, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", username).
			Wrap(err)
	}
	return account, nil
}

// GetByID retrieves an account by id.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT user_id, username, password_hash, user_role_id, created_at
		FROM users
		WHERE user_id = $1
	`, id)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id).
			Wrap(err)
	}
	return account, nil
}

// GetByUsername retrieves an account by exact username. The lookup is
// deliberately case-sensitive: the uniqueness the policy enforces is on
// the stored byte sequence.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT user_id, username, password_hash, user_role_id, created_at
		FROM users
		WHERE username = $1
	`, username)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_USERNAME_FAILED").
			With("operation", "get account by username").
			With("username", username).
			Wrap(err)
	}
	return account, nil
}

// UpdatePassword replaces the password hash for an account.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2 WHERE user_id = $1
	`, id, passwordHash)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").
			With("operation", "update password hash").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanAccount(row pgx.Row) (*auth.Account, error) {
	var account auth.Account
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.RoleID,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
