// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goaway "github.com/TwiN/go-away"
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Username length bounds.
const (
	MinUsernameLength = 5
	MaxUsernameLength = 20
)

// allowedUsernameSymbols is the small symbol set permitted in usernames,
// rendered verbatim in the rejection message.
const allowedUsernameSymbols = ". _ -"

// UsernamePolicy is the immutable configuration of the username validator,
// loaded once at process start. Risky entries are glob patterns matched
// case-insensitively against the whole username; reserved entries match the
// lowercased username exactly.
type UsernamePolicy struct {
	Risky    []string
	Reserved []string
}

// DefaultUsernamePolicy returns the built-in blocklists: role-implying
// administrative terms plus reserved system literals.
func DefaultUsernamePolicy() UsernamePolicy {
	return UsernamePolicy{
		Risky: []string{
			"*admin*", "*root*", "*support*", "*moderator*",
			"*superuser*", "*contact*", "*god*",
		},
		Reserved: []string{"system", "null", "undefined", "true", "false"},
	}
}

// UsernameValidator evaluates candidate usernames against structural rules,
// the configured blocklists, a profanity filter, and a store existence
// check. All filter state is built at construction and never mutated.
type UsernameValidator struct {
	accounts  AccountRepository
	risky     []glob.Glob
	reserved  map[string]struct{}
	profanity *goaway.ProfanityDetector
}

// NewUsernameValidator compiles the policy and creates a validator.
func NewUsernameValidator(accounts AccountRepository, policy UsernamePolicy) (*UsernameValidator, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("account repository is required")
	}

	risky := make([]glob.Glob, 0, len(policy.Risky))
	for _, pattern := range policy.Risky {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, oops.Code("CONFIG_INVALID").
				With("pattern", pattern).
				Wrapf(err, "invalid risky username pattern")
		}
		risky = append(risky, g)
	}

	reserved := make(map[string]struct{}, len(policy.Reserved))
	for _, word := range policy.Reserved {
		reserved[strings.ToLower(word)] = struct{}{}
	}

	return &UsernameValidator{
		accounts:  accounts,
		risky:     risky,
		reserved:  reserved,
		profanity: goaway.NewProfanityDetector(),
	}, nil
}

// Validate evaluates a candidate username. The first failing check
// short-circuits. A non-nil error means the existence lookup faulted, not
// that the username was rejected.
func (v *UsernameValidator) Validate(ctx context.Context, username string) (Outcome, error) {
	_, err := v.accounts.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return Refuse(fmt.Sprintf("Username %s is already taken", username)), nil
	case !errors.Is(err, ErrNotFound):
		return Outcome{}, oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("operation", "get account by username").
			Wrap(err)
	}

	lower := strings.ToLower(username)
	if _, ok := v.reserved[lower]; ok {
		return Refuse(fmt.Sprintf("Username cannot contain the word %s", username)), nil
	}
	for _, g := range v.risky {
		if g.Match(lower) {
			return Refuse(fmt.Sprintf("Username cannot contain the word %s", username)), nil
		}
	}

	// Separators hide words from the filter, so normalize them to spaces
	// before the profanity check.
	normalized := strings.Map(func(r rune) rune {
		switch r {
		case '_', '.', '-':
			return ' '
		}
		return r
	}, username)
	if v.profanity.IsProfane(normalized) {
		return Refuse("Username cannot contain bad words"), nil
	}

	if len(username) < MinUsernameLength {
		return Refuse(fmt.Sprintf("Username must be at least %d characters long", MinUsernameLength)), nil
	}
	if len(username) > MaxUsernameLength {
		return Refuse(fmt.Sprintf("Username must not exceed %d characters", MaxUsernameLength)), nil
	}

	for _, r := range username {
		if !isAllowedUsernameRune(r) {
			return Refuse(fmt.Sprintf("Username can only contain alphanumeric characters and %s", allowedUsernameSymbols)), nil
		}
	}

	return Accept(), nil
}

func isAllowedUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	}
	return false
}
