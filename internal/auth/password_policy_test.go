// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyward/keyward/internal/auth"
	"github.com/keyward/keyward/internal/auth/mocks"
)

func TestNewPasswordValidator_NilRepository(t *testing.T) {
	v, err := auth.NewPasswordValidator(nil)
	require.Error(t, err)
	assert.Nil(t, v)
	assert.Contains(t, err.Error(), "password rule repository is required")
}

func TestPasswordValidator_Validate(t *testing.T) {
	ctx := context.Background()

	newValidator := func(t *testing.T, rule *auth.PasswordRule) *auth.PasswordValidator {
		t.Helper()
		rules := mocks.NewMockPasswordRuleRepository(t)
		rules.On("GetByRole", ctx, rule.RoleID).Return(rule, nil)
		v, err := auth.NewPasswordValidator(rules)
		require.NoError(t, err)
		return v
	}

	memberRule := &auth.PasswordRule{
		RoleID:           1,
		MinLength:        8,
		MinDistinctTypes: 2,
	}

	t.Run("accepts password meeting the rule", func(t *testing.T) {
		v := newValidator(t, memberRule)
		outcome, err := v.Validate(ctx, "password123", 1)
		require.NoError(t, err)
		assert.True(t, outcome.Valid)
		assert.Empty(t, outcome.Reason)
	})

	t.Run("rejects password below minimum length", func(t *testing.T) {
		v := newValidator(t, memberRule)
		outcome, err := v.Validate(ctx, "short1", 1)
		require.NoError(t, err)
		assert.False(t, outcome.Valid)
		assert.Equal(t, "Password must be at least 8 characters long", outcome.Reason)
	})

	t.Run("rejects password over 64 characters", func(t *testing.T) {
		v := newValidator(t, memberRule)
		outcome, err := v.Validate(ctx, strings.Repeat("a", 65)+"1", 1)
		require.NoError(t, err)
		assert.False(t, outcome.Valid)
		assert.Equal(t, "Password cannot exceed 64 characters", outcome.Reason)
	})

	t.Run("rejects password with too few character types", func(t *testing.T) {
		v := newValidator(t, memberRule)
		outcome, err := v.Validate(ctx, "alllowercase", 1)
		require.NoError(t, err)
		assert.False(t, outcome.Valid)
		assert.Equal(t, "Password must contain at least 2 different types of characters", outcome.Reason)
	})

	t.Run("strict rule accepts fully mixed password", func(t *testing.T) {
		v := newValidator(t, &auth.PasswordRule{
			RoleID:           2,
			MinLength:        8,
			MinDistinctTypes: 3,
			RequireUpper:     true,
			RequireNumber:    true,
		})
		outcome, err := v.Validate(ctx, "ValidPassword123!", 2)
		require.NoError(t, err)
		assert.True(t, outcome.Valid)
	})

	t.Run("missing required class is named before the aggregate count", func(t *testing.T) {
		v := newValidator(t, &auth.PasswordRule{
			RoleID:           2,
			MinLength:        8,
			MinDistinctTypes: 4,
			RequireUpper:     true,
			RequireNumber:    true,
			RequireSpecial:   true,
		})
		outcome, err := v.Validate(ctx, "Password123", 2)
		require.NoError(t, err)
		assert.False(t, outcome.Valid)
		assert.Equal(t, "Password must contain at least one special character", outcome.Reason)
	})

	t.Run("missing uppercase is named when required", func(t *testing.T) {
		v := newValidator(t, &auth.PasswordRule{
			RoleID:        3,
			MinLength:     8,
			RequireUpper:  true,
			RequireNumber: true,
		})
		outcome, err := v.Validate(ctx, "password123", 3)
		require.NoError(t, err)
		assert.False(t, outcome.Valid)
		assert.Equal(t, "Password must contain at least one uppercase letter", outcome.Reason)
	})

	t.Run("missing number is named when required", func(t *testing.T) {
		v := newValidator(t, &auth.PasswordRule{
			RoleID:        3,
			MinLength:     8,
			RequireNumber: true,
		})
		outcome, err := v.Validate(ctx, "passwordonly", 3)
		require.NoError(t, err)
		assert.False(t, outcome.Valid)
		assert.Equal(t, "Password must contain at least one number", outcome.Reason)
	})

	t.Run("lowercase is never required", func(t *testing.T) {
		v := newValidator(t, &auth.PasswordRule{
			RoleID:           4,
			MinLength:        8,
			MinDistinctTypes: 3,
			RequireUpper:     true,
			RequireNumber:    true,
			RequireSpecial:   true,
		})
		outcome, err := v.Validate(ctx, "UPPERCASE123!", 4)
		require.NoError(t, err)
		assert.True(t, outcome.Valid)
	})

	t.Run("length check runs before class checks", func(t *testing.T) {
		v := newValidator(t, &auth.PasswordRule{
			RoleID:        5,
			MinLength:     12,
			RequireUpper:  true,
			RequireNumber: true,
		})
		outcome, err := v.Validate(ctx, "short", 5)
		require.NoError(t, err)
		assert.False(t, outcome.Valid)
		assert.Equal(t, "Password must be at least 12 characters long", outcome.Reason)
	})

	t.Run("rule lookup failure is a fault not a rejection", func(t *testing.T) {
		rules := mocks.NewMockPasswordRuleRepository(t)
		rules.On("GetByRole", ctx, int64(9)).Return(nil, errors.New("connection refused"))
		v, err := auth.NewPasswordValidator(rules)
		require.NoError(t, err)

		outcome, err := v.Validate(ctx, "anypassword1", 9)
		require.Error(t, err)
		assert.False(t, outcome.Valid)
		assert.Contains(t, err.Error(), "connection refused")
	})
}
