// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keyward/keyward/internal/auth"
	"github.com/keyward/keyward/internal/auth/mocks"
	"github.com/keyward/keyward/pkg/errutil"
)

// serviceFixture bundles a Service with the mocks behind it. The account
// repository backs both the service and the username validator, so a single
// GetByUsername expectation covers the registration existence check.
type serviceFixture struct {
	svc      *auth.Service
	accounts *mocks.MockAccountRepository
	rules    *mocks.MockPasswordRuleRepository
	hasher   *mocks.MockPasswordHasher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	accounts := mocks.NewMockAccountRepository(t)
	rules := mocks.NewMockPasswordRuleRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)

	passwords, err := auth.NewPasswordValidator(rules)
	require.NoError(t, err)
	usernames, err := auth.NewUsernameValidator(accounts, auth.DefaultUsernamePolicy())
	require.NoError(t, err)

	svc, err := auth.NewService(accounts, passwords, usernames, hasher, nil)
	require.NoError(t, err)

	return &serviceFixture{svc: svc, accounts: accounts, rules: rules, hasher: hasher}
}

var memberRule = &auth.PasswordRule{
	RoleID:           auth.DefaultRoleID,
	MinLength:        8,
	MinDistinctTypes: 2,
}

func TestNewService_NilDependencies(t *testing.T) {
	accounts := mocks.NewMockAccountRepository(t)
	rules := mocks.NewMockPasswordRuleRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)

	passwords, err := auth.NewPasswordValidator(rules)
	require.NoError(t, err)
	usernames, err := auth.NewUsernameValidator(accounts, auth.DefaultUsernamePolicy())
	require.NoError(t, err)

	tests := []struct {
		name        string
		accounts    auth.AccountRepository
		passwords   *auth.PasswordValidator
		usernames   *auth.UsernameValidator
		hasher      auth.PasswordHasher
		expectError string
	}{
		{"nil account repository", nil, passwords, usernames, hasher, "account repository is required"},
		{"nil password validator", accounts, nil, usernames, hasher, "password validator is required"},
		{"nil username validator", accounts, passwords, nil, hasher, "username validator is required"},
		{"nil password hasher", accounts, passwords, usernames, nil, "password hasher is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewService(tt.accounts, tt.passwords, tt.usernames, tt.hasher, nil)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("registers valid credentials", func(t *testing.T) {
		f := newServiceFixture(t)
		created := &auth.Account{ID: 7, Username: "alice123", PasswordHash: "hashed", RoleID: auth.DefaultRoleID}

		f.accounts.On("GetByUsername", ctx, "alice123").Return(nil, auth.ErrNotFound)
		f.rules.On("GetByRole", ctx, auth.DefaultRoleID).Return(memberRule, nil)
		f.hasher.On("Hash", "password123").Return("hashed", nil)
		f.accounts.On("Create", ctx, "alice123", "hashed").Return(created, nil)

		account, err := f.svc.Register(ctx, "alice123", "password123")
		require.NoError(t, err)
		assert.Equal(t, created, account)
	})

	t.Run("rejects invalid username", func(t *testing.T) {
		f := newServiceFixture(t)
		f.accounts.On("GetByUsername", ctx, "abc").Return(nil, auth.ErrNotFound)

		_, err := f.svc.Register(ctx, "abc", "password123")
		rej, ok := auth.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, rej.Status)
		assert.Equal(t, "Username must be at least 5 characters long", rej.Reason)
	})

	t.Run("rejects taken username", func(t *testing.T) {
		f := newServiceFixture(t)
		f.accounts.On("GetByUsername", ctx, "alice123").
			Return(&auth.Account{ID: 1, Username: "alice123"}, nil)

		_, err := f.svc.Register(ctx, "alice123", "password123")
		rej, ok := auth.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, rej.Status)
		assert.Equal(t, "Username alice123 is already taken", rej.Reason)
	})

	t.Run("rejects invalid password before hashing", func(t *testing.T) {
		f := newServiceFixture(t)
		f.accounts.On("GetByUsername", ctx, "alice123").Return(nil, auth.ErrNotFound)
		f.rules.On("GetByRole", ctx, auth.DefaultRoleID).Return(memberRule, nil)

		_, err := f.svc.Register(ctx, "alice123", "short")
		rej, ok := auth.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, rej.Status)
		assert.Equal(t, "Password must be at least 8 characters long", rej.Reason)
		f.hasher.AssertNotCalled(t, "Hash", mock.Anything)
	})

	t.Run("lost registration race maps to taken username", func(t *testing.T) {
		f := newServiceFixture(t)
		f.accounts.On("GetByUsername", ctx, "alice123").Return(nil, auth.ErrNotFound)
		f.rules.On("GetByRole", ctx, auth.DefaultRoleID).Return(memberRule, nil)
		f.hasher.On("Hash", "password123").Return("hashed", nil)
		f.accounts.On("Create", ctx, "alice123", "hashed").Return(nil, auth.ErrDuplicate)

		_, err := f.svc.Register(ctx, "alice123", "password123")
		rej, ok := auth.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, rej.Status)
		assert.Equal(t, "Username alice123 is already taken", rej.Reason)
	})

	t.Run("insert fault surfaces as an error", func(t *testing.T) {
		f := newServiceFixture(t)
		f.accounts.On("GetByUsername", ctx, "alice123").Return(nil, auth.ErrNotFound)
		f.rules.On("GetByRole", ctx, auth.DefaultRoleID).Return(memberRule, nil)
		f.hasher.On("Hash", "password123").Return("hashed", nil)
		f.accounts.On("Create", ctx, "alice123", "hashed").Return(nil, errors.New("connection refused"))

		_, err := f.svc.Register(ctx, "alice123", "password123")
		require.Error(t, err)
		_, isRejection := auth.AsRejection(err)
		assert.False(t, isRejection)
		errutil.AssertErrorCode(t, err, "AUTH_REGISTER_FAILED")
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	account := &auth.Account{
		ID:           7,
		Username:     "alice123",
		PasswordHash: "$argon2id$stored",
		RoleID:       auth.DefaultRoleID,
	}

	t.Run("valid credentials log in", func(t *testing.T) {
		f := newServiceFixture(t)
		f.accounts.On("GetByUsername", ctx, "alice123").Return(account, nil)
		f.hasher.On("Verify", "password123", account.PasswordHash).Return(true, nil)
		f.hasher.On("NeedsUpgrade", account.PasswordHash).Return(false)

		got, err := f.svc.Login(ctx, "alice123", "password123")
		require.NoError(t, err)
		assert.Equal(t, int64(7), got.ID)
	})

	t.Run("unknown user rejects 404 after dummy verification", func(t *testing.T) {
		f := newServiceFixture(t)
		f.accounts.On("GetByUsername", ctx, "nobody99").Return(nil, auth.ErrNotFound)
		// Verification still runs against the dummy hash so the timing of
		// both outcomes matches.
		f.hasher.On("Verify", "password123", mock.AnythingOfType("string")).Return(false, nil)

		_, err := f.svc.Login(ctx, "nobody99", "password123")
		rej, ok := auth.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, rej.Status)
		assert.Equal(t, "User not found", rej.Reason)
	})

	t.Run("wrong password rejects 401", func(t *testing.T) {
		f := newServiceFixture(t)
		f.accounts.On("GetByUsername", ctx, "alice123").Return(account, nil)
		f.hasher.On("Verify", "wrongpass", account.PasswordHash).Return(false, nil)

		_, err := f.svc.Login(ctx, "alice123", "wrongpass")
		rej, ok := auth.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, rej.Status)
		assert.Equal(t, "Invalid password", rej.Reason)
	})

	t.Run("upgrades legacy hash on successful login", func(t *testing.T) {
		f := newServiceFixture(t)
		legacy := &auth.Account{ID: 8, Username: "bob12", PasswordHash: "$2a$10$legacy", RoleID: auth.DefaultRoleID}

		f.accounts.On("GetByUsername", ctx, "bob12").Return(legacy, nil)
		f.hasher.On("Verify", "password123", "$2a$10$legacy").Return(true, nil)
		f.hasher.On("NeedsUpgrade", "$2a$10$legacy").Return(true)
		f.hasher.On("Hash", "password123").Return("$argon2id$fresh", nil)
		f.accounts.On("UpdatePassword", ctx, int64(8), "$argon2id$fresh").Return(nil)

		got, err := f.svc.Login(ctx, "bob12", "password123")
		require.NoError(t, err)
		assert.Equal(t, "$argon2id$fresh", got.PasswordHash)
	})

	t.Run("login survives a failed hash upgrade", func(t *testing.T) {
		f := newServiceFixture(t)
		legacy := &auth.Account{ID: 8, Username: "bob12", PasswordHash: "$2a$10$legacy", RoleID: auth.DefaultRoleID}

		f.accounts.On("GetByUsername", ctx, "bob12").Return(legacy, nil)
		f.hasher.On("Verify", "password123", "$2a$10$legacy").Return(true, nil)
		f.hasher.On("NeedsUpgrade", "$2a$10$legacy").Return(true)
		f.hasher.On("Hash", "password123").Return("$argon2id$fresh", nil)
		f.accounts.On("UpdatePassword", ctx, int64(8), "$argon2id$fresh").Return(errors.New("connection refused"))

		got, err := f.svc.Login(ctx, "bob12", "password123")
		require.NoError(t, err)
		assert.Equal(t, "$2a$10$legacy", got.PasswordHash)
	})

	t.Run("lookup fault surfaces as an error", func(t *testing.T) {
		f := newServiceFixture(t)
		f.accounts.On("GetByUsername", ctx, "alice123").Return(nil, errors.New("connection refused"))

		_, err := f.svc.Login(ctx, "alice123", "password123")
		require.Error(t, err)
		_, isRejection := auth.AsRejection(err)
		assert.False(t, isRejection)
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
	})
}

func TestService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	account := &auth.Account{
		ID:           7,
		Username:     "alice123",
		PasswordHash: "$argon2id$stored",
		RoleID:       auth.DefaultRoleID,
	}

	t.Run("changes password with valid input", func(t *testing.T) {
		f := newServiceFixture(t)
		f.accounts.On("GetByID", ctx, int64(7)).Return(account, nil)
		f.hasher.On("Verify", "oldpassword1", account.PasswordHash).Return(true, nil)
		f.rules.On("GetByRole", ctx, account.RoleID).Return(memberRule, nil)
		f.hasher.On("Hash", "newpassword2").Return("$argon2id$new", nil)
		f.accounts.On("UpdatePassword", ctx, int64(7), "$argon2id$new").Return(nil)

		err := f.svc.ChangePassword(ctx, 7, "oldpassword1", "newpassword2")
		require.NoError(t, err)
	})

	t.Run("unknown account rejects 404", func(t *testing.T) {
		f := newServiceFixture(t)
		f.accounts.On("GetByID", ctx, int64(9)).Return(nil, auth.ErrNotFound)

		err := f.svc.ChangePassword(ctx, 9, "oldpassword1", "newpassword2")
		rej, ok := auth.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, rej.Status)
		assert.Equal(t, "User not found", rej.Reason)
	})

	t.Run("wrong current password rejects 401", func(t *testing.T) {
		f := newServiceFixture(t)
		f.accounts.On("GetByID", ctx, int64(7)).Return(account, nil)
		f.hasher.On("Verify", "wrongpass", account.PasswordHash).Return(false, nil)

		err := f.svc.ChangePassword(ctx, 7, "wrongpass", "newpassword2")
		rej, ok := auth.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, rej.Status)
		assert.Equal(t, "Invalid current password", rej.Reason)
	})

	t.Run("weak new password rejects 400", func(t *testing.T) {
		f := newServiceFixture(t)
		f.accounts.On("GetByID", ctx, int64(7)).Return(account, nil)
		f.hasher.On("Verify", "oldpassword1", account.PasswordHash).Return(true, nil)
		f.rules.On("GetByRole", ctx, account.RoleID).Return(memberRule, nil)

		err := f.svc.ChangePassword(ctx, 7, "oldpassword1", "weak")
		rej, ok := auth.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, rej.Status)
		assert.Equal(t, "Password must be at least 8 characters long", rej.Reason)
	})

	t.Run("new password is validated against the caller's role", func(t *testing.T) {
		f := newServiceFixture(t)
		admin := &auth.Account{ID: 3, Username: "keeper5", PasswordHash: "$argon2id$stored", RoleID: 2}
		strict := &auth.PasswordRule{
			RoleID:           2,
			MinLength:        12,
			MinDistinctTypes: 3,
			RequireUpper:     true,
			RequireNumber:    true,
			RequireSpecial:   true,
		}

		f.accounts.On("GetByID", ctx, int64(3)).Return(admin, nil)
		f.hasher.On("Verify", "oldpassword1", admin.PasswordHash).Return(true, nil)
		f.rules.On("GetByRole", ctx, int64(2)).Return(strict, nil)

		err := f.svc.ChangePassword(ctx, 3, "oldpassword1", "LongEnoughPass1")
		rej, ok := auth.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, "Password must contain at least one special character", rej.Reason)
	})

	t.Run("update fault surfaces as an error", func(t *testing.T) {
		f := newServiceFixture(t)
		f.accounts.On("GetByID", ctx, int64(7)).Return(account, nil)
		f.hasher.On("Verify", "oldpassword1", account.PasswordHash).Return(true, nil)
		f.rules.On("GetByRole", ctx, account.RoleID).Return(memberRule, nil)
		f.hasher.On("Hash", "newpassword2").Return("$argon2id$new", nil)
		f.accounts.On("UpdatePassword", ctx, int64(7), "$argon2id$new").Return(errors.New("connection refused"))

		err := f.svc.ChangePassword(ctx, 7, "oldpassword1", "newpassword2")
		require.Error(t, err)
		_, isRejection := auth.AsRejection(err)
		assert.False(t, isRejection)
		errutil.AssertErrorCode(t, err, "AUTH_CHANGE_PASSWORD_FAILED")
	})
}
