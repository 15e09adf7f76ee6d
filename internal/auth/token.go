// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// CookieName is the name of the session-token transport cookie.
const CookieName = "access_token"

// Default issuance parameters.
const (
	DefaultTokenLifetime = 30 * 24 * time.Hour
	// DefaultIssuedAtSkew backdates iat/nbf so the not-before bound
	// tolerates clock drift between server and verifier.
	DefaultIssuedAtSkew = 24 * time.Hour
)

// Rejection reasons and status classes for every token verification
// failure mode. Absent and expired tokens are 401; everything else that
// fails verification is 403 except signer misconfiguration, which is a 500.
var (
	RejectNotLoggedIn    = Reject(http.StatusUnauthorized, "Not logged in")
	RejectTokenExpired   = Reject(http.StatusUnauthorized, "Token expired")
	RejectTokenInvalid   = Reject(http.StatusForbidden, "Invalid token")
	RejectTokenNotYet    = Reject(http.StatusForbidden, "Token not valid yet")
	RejectTokenIssuedAt  = Reject(http.StatusForbidden, "Incorrect token issue date")
	RejectTokenSignature = Reject(http.StatusForbidden, "Token signature mismatch")
	RejectTokenAlgorithm = Reject(http.StatusInternalServerError, "Algorithm not implemented")
	RejectTokenVerify    = Reject(http.StatusForbidden, "Token verification failed")
	RejectUserNotFound   = Reject(http.StatusNotFound, "User not found")
	RejectRefreshFailed  = Reject(http.StatusInternalServerError, "Failed to refresh token")
)

// SessionClaims is the signed token payload. Field names are the wire
// format; all timestamps are epoch seconds.
type SessionClaims struct {
	SubjectID int64 `json:"subject_id"`
	RoleID    int64 `json:"role_id"`
	IssuedAt  int64 `json:"issued_at"`
	NotBefore int64 `json:"not_before"`
	ExpiresAt int64 `json:"expires_at"`
}

// GetExpirationTime implements jwt.Claims.
func (c SessionClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

// GetIssuedAt implements jwt.Claims.
func (c SessionClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

// GetNotBefore implements jwt.Claims.
func (c SessionClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.NotBefore, 0)), nil
}

// GetIssuer implements jwt.Claims.
func (c SessionClaims) GetIssuer() (string, error) { return "", nil }

// GetSubject implements jwt.Claims.
func (c SessionClaims) GetSubject() (string, error) { return "", nil }

// GetAudience implements jwt.Claims.
func (c SessionClaims) GetAudience() (jwt.ClaimStrings, error) { return nil, nil }

// TokenEngineConfig configures a TokenEngine.
type TokenEngineConfig struct {
	// Secret is the server-held HMAC signing secret, loaded once at
	// process start and never mutated.
	Secret []byte

	// Lifetime is the session lifetime from issuance to expiry.
	Lifetime time.Duration

	// IssuedAtSkew is subtracted from now when stamping iat/nbf.
	IssuedAtSkew time.Duration

	// CookieSecure controls the Secure cookie attribute. Disabled only in
	// local development over plain HTTP.
	CookieSecure bool

	// RefreshOnVerify re-issues the token on every successful
	// verification (rolling refresh). Disabling it trades the fresh
	// expiry window for one signing operation less per request.
	RefreshOnVerify bool
}

// TokenEngine builds, signs, verifies, and rolls session tokens carried in
// the access_token cookie. It is stateless across requests: validity is
// entirely a function of the signature and the embedded timestamps.
type TokenEngine struct {
	secret          []byte
	lifetime        time.Duration
	skew            time.Duration
	cookieSecure    bool
	refreshOnVerify bool
	accounts        AccountRepository

	now func() time.Time
}

// NewTokenEngine creates a TokenEngine.
func NewTokenEngine(cfg TokenEngineConfig, accounts AccountRepository) (*TokenEngine, error) {
	if len(cfg.Secret) == 0 {
		return nil, oops.Code("CONFIG_INVALID").Errorf("token signing secret is required")
	}
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("account repository is required")
	}

	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	skew := cfg.IssuedAtSkew
	if skew < 0 {
		skew = DefaultIssuedAtSkew
	}

	return &TokenEngine{
		secret:          cfg.Secret,
		lifetime:        lifetime,
		skew:            skew,
		cookieSecure:    cfg.CookieSecure,
		refreshOnVerify: cfg.RefreshOnVerify,
		accounts:        accounts,
		now:             time.Now,
	}, nil
}

// RefreshesOnVerify reports whether the engine rolls the token on every
// successful verification.
func (e *TokenEngine) RefreshesOnVerify() bool {
	return e.refreshOnVerify
}

// Issue builds fresh claims for the account, signs them, and sets the
// transport cookie on w. Claims are always rebuilt whole; nothing from a
// previous token survives.
func (e *TokenEngine) Issue(w http.ResponseWriter, account *Account) error {
	now := e.now()
	expiresAt := now.Add(e.lifetime)
	issuedAt := now.Add(-e.skew)

	claims := SessionClaims{
		SubjectID: account.ID,
		RoleID:    account.RoleID,
		IssuedAt:  issuedAt.Unix(),
		NotBefore: issuedAt.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.secret)
	if err != nil {
		return oops.Code("TOKEN_SIGN_FAILED").
			With("subject_id", account.ID).
			Wrap(err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Secure:   e.cookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(expiresAt.Sub(now) / time.Second),
		Expires:  expiresAt,
	})

	return nil
}

// ClearCookie expires the transport cookie on w.
func (e *TokenEngine) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Secure:   e.cookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

// Authenticate verifies the token carried by r and, on success, re-resolves
// the account and rolls the cookie when refresh-on-verify is enabled.
// Verification always precedes refresh; a refresh failure denies the
// request rather than letting it through on stale claims.
//
// Failures return a *Rejection with the status class fixed per condition.
// Any other error is a store fault for the caller's outer boundary.
func (e *TokenEngine) Authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Identity, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, RejectNotLoggedIn
	}

	claims, err := e.parse(cookie.Value)
	if err != nil {
		return nil, classifyTokenError(err)
	}

	account, err := e.accounts.GetByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Valid signature but the account is gone: deletion acts as
			// revocation.
			return nil, RejectUserNotFound
		}
		return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("operation", "get account by id").
			With("subject_id", claims.SubjectID).
			Wrap(err)
	}

	if e.refreshOnVerify {
		if err := e.Issue(w, account); err != nil {
			return nil, RejectRefreshFailed
		}
	}

	return IdentityOf(account), nil
}

// parse verifies the signature and the timing claims of a compact token.
func (e *TokenEngine) parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return e.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(e.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.SubjectID == 0 {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// classifyTokenError maps every error class the signing library can
// produce to its response class. Unrecognized errors fall through to the
// generic verification failure.
func classifyTokenError(err error) *Rejection {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return RejectTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return RejectTokenNotYet
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return RejectTokenIssuedAt
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return RejectTokenSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return RejectTokenInvalid
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return RejectTokenAlgorithm
	default:
		return RejectTokenVerify
	}
}
