// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/keyward/keyward/internal/auth"
)

// MockAccountRepository is a mock implementation of auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a MockAccountRepository bound to t. Set
// expectations are asserted automatically at test cleanup.
func NewMockAccountRepository(t *testing.T) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountRepository) Create(ctx context.Context, username, passwordHash string) (*auth.Account, error) {
	args := m.Called(ctx, username, passwordHash)
	var account *auth.Account
	if v := args.Get(0); v != nil {
		account = v.(*auth.Account)
	}
	return account, args.Error(1)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id int64) (*auth.Account, error) {
	args := m.Called(ctx, id)
	var account *auth.Account
	if v := args.Get(0); v != nil {
		account = v.(*auth.Account)
	}
	return account, args.Error(1)
}

func (m *MockAccountRepository) GetByUsername(ctx context.Context, username string) (*auth.Account, error) {
	args := m.Called(ctx, username)
	var account *auth.Account
	if v := args.Get(0); v != nil {
		account = v.(*auth.Account)
	}
	return account, args.Error(1)
}

func (m *MockAccountRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

// MockPasswordRuleRepository is a mock implementation of
// auth.PasswordRuleRepository.
type MockPasswordRuleRepository struct {
	mock.Mock
}

// NewMockPasswordRuleRepository creates a MockPasswordRuleRepository bound
// to t.
func NewMockPasswordRuleRepository(t *testing.T) *MockPasswordRuleRepository {
	m := &MockPasswordRuleRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordRuleRepository) GetByRole(ctx context.Context, roleID int64) (*auth.PasswordRule, error) {
	args := m.Called(ctx, roleID)
	var rule *auth.PasswordRule
	if v := args.Get(0); v != nil {
		rule = v.(*auth.PasswordRule)
	}
	return rule, args.Error(1)
}

// MockPasswordHasher is a mock implementation of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher bound to t.
func NewMockPasswordHasher(t *testing.T) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}
