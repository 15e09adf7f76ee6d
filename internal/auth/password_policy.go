// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/samber/oops"
)

// specialCharacters is the fixed symbol set counted as the "special
// character" class.
const specialCharacters = `!@#$%^&*(),.?":{}|<>`

// Outcome is the result of a policy check: either valid, or rejected with a
// human-readable reason. Exactly one branch is populated.
type Outcome struct {
	Valid  bool
	Reason string
}

// Accept returns a passing Outcome.
func Accept() Outcome {
	return Outcome{Valid: true}
}

// Refuse returns a rejecting Outcome with the given reason.
func Refuse(reason string) Outcome {
	return Outcome{Reason: reason}
}

// characterClass is one of the four character classes a password is
// measured against. Order matters: required-class checks fail fast in
// declaration order before the aggregate count runs.
type characterClass struct {
	name    string
	present func(rune) bool
}

var characterClasses = []characterClass{
	{name: "lowercase letter", present: unicode.IsLower},
	{name: "uppercase letter", present: unicode.IsUpper},
	{name: "number", present: unicode.IsDigit},
	{name: "special character", present: func(r rune) bool {
		return strings.ContainsRune(specialCharacters, r)
	}},
}

// PasswordValidator evaluates candidate passwords against the policy row
// bound to a role. The rule is fetched per call, never cached, so policy
// changes apply from the next validation onward.
type PasswordValidator struct {
	rules PasswordRuleRepository
}

// NewPasswordValidator creates a PasswordValidator.
func NewPasswordValidator(rules PasswordRuleRepository) (*PasswordValidator, error) {
	if rules == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password rule repository is required")
	}
	return &PasswordValidator{rules: rules}, nil
}

// Validate evaluates candidate against the rule for roleID.
//
// A non-nil error means a fault, not a bad password: a missing rule row is a
// deployment misconfiguration and surfaces as an error so callers never
// confuse it with a rejection.
func (v *PasswordValidator) Validate(ctx context.Context, candidate string, roleID int64) (Outcome, error) {
	rule, err := v.rules.GetByRole(ctx, roleID)
	if err != nil {
		return Outcome{}, oops.Code("RULE_LOOKUP_FAILED").
			With("role_id", roleID).
			Wrap(err)
	}

	if len(candidate) < rule.MinLength {
		return Refuse(fmt.Sprintf("Password must be at least %d characters long", rule.MinLength)), nil
	}

	// Hard ceiling independent of the configured rule; protects the hash
	// primitive from pathological input.
	if len(candidate) > maxPasswordBytes {
		return Refuse(fmt.Sprintf("Password cannot exceed %d characters", maxPasswordBytes)), nil
	}

	required := map[string]bool{
		"uppercase letter":  rule.RequireUpper,
		"number":            rule.RequireNumber,
		"special character": rule.RequireSpecial,
	}

	distinct := 0
	for _, class := range characterClasses {
		if strings.ContainsFunc(candidate, class.present) {
			distinct++
		} else if required[class.name] {
			return Refuse(fmt.Sprintf("Password must contain at least one %s", class.name)), nil
		}
	}

	if distinct < rule.MinDistinctTypes {
		return Refuse(fmt.Sprintf("Password must contain at least %d different types of characters", rule.MinDistinctTypes)), nil
	}

	return Accept(), nil
}
