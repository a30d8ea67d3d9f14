package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose tags a token kind. Every claim set carries its purpose and every
// decoder requires an exact match.
type Purpose string

const (
	PurposeAccess        Purpose = "access"
	PurposeRefresh       Purpose = "refresh"
	PurposeStepUp        Purpose = "step_up"
	PurposeTwoFactor     Purpose = "two_factor"
	PurposeSession       Purpose = "session"
	PurposeVerifyEmail   Purpose = "verify_email"
	PurposePasswordReset Purpose = "password_reset"
)

var (
	// ErrInvalid covers bad signatures, malformed claims and purpose
	// mismatches.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is returned when the token is past its expiry beyond the
	// configured leeway.
	ErrExpired = errors.New("token expired")
)

// Codec signs and verifies all token kinds with a shared HMAC key. Clock
// skew tolerance is fixed at construction, not per call site.
type Codec struct {
	key    []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewCodec builds a codec. The key must be non-empty; leeway may be zero.
func NewCodec(key []byte, issuer string, leeway time.Duration) (*Codec, error) {
	if len(key) == 0 {
		return nil, errors.New("signing key required")
	}
	if leeway < 0 {
		return nil, errors.New("leeway must not be negative")
	}
	return &Codec{key: key, issuer: issuer, leeway: leeway, now: time.Now}, nil
}

// SetNowFunc replaces the codec's clock. Intended for tests that need to
// move time past an expiry.
func (c *Codec) SetNowFunc(now func() time.Time) {
	c.now = now
}

// AccessClaims is the claim set of an access token.
type AccessClaims struct {
	SessionID string   `json:"sid"`
	Roles     []string `json:"roles"`
	Groups    []string `json:"groups"`
	Purpose   Purpose  `json:"pur"`
	jwt.RegisteredClaims
}

// RefreshClaims is the claim set of a refresh token. ID (jti) must match the
// live session's refresh-token id to be usable.
type RefreshClaims struct {
	SessionID string  `json:"sid"`
	Purpose   Purpose `json:"pur"`
	jwt.RegisteredClaims
}

// StepUpClaims is the claim set of a step-up token, bound to an exact
// (user, session) pair.
type StepUpClaims struct {
	SessionID string  `json:"sid"`
	Purpose   Purpose `json:"pur"`
	jwt.RegisteredClaims
}

// TwoFactorClaims is the claim set of a two-factor token. It deliberately
// carries no session or role information.
type TwoFactorClaims struct {
	Purpose Purpose `json:"pur"`
	jwt.RegisteredClaims
}

// SessionClaims carries client-declared session metadata across the
// login/refresh boundary.
type SessionClaims struct {
	SessionID string  `json:"sid"`
	Browser   string  `json:"browser,omitempty"`
	OS        string  `json:"os,omitempty"`
	Purpose   Purpose `json:"pur"`
	jwt.RegisteredClaims
}

// ActionClaims backs single-action mail tokens (email verification,
// password reset). The purpose distinguishes the two.
type ActionClaims struct {
	Email   string  `json:"email"`
	Purpose Purpose `json:"pur"`
	jwt.RegisteredClaims
}

func (c *Codec) registered(subject, id string, ttl time.Duration) jwt.RegisteredClaims {
	now := c.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		ID:        id,
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (c *Codec) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
}

// SignAccess mints an access token. tokenID becomes the jti that the
// revocation cache tracks. The expiry is returned so callers can size cache
// TTLs and cookie lifetimes from the same instant.
func (c *Codec) SignAccess(userID, sessionID, tokenID string, roles, groups []string, ttl time.Duration) (string, time.Time, error) {
	// nil slices marshal to null, which ParseAccess rejects as missing.
	if roles == nil {
		roles = []string{}
	}
	if groups == nil {
		groups = []string{}
	}
	claims := AccessClaims{
		SessionID:        sessionID,
		Roles:            roles,
		Groups:           groups,
		Purpose:          PurposeAccess,
		RegisteredClaims: c.registered(userID, tokenID, ttl),
	}
	raw, err := c.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return raw, claims.ExpiresAt.Time, nil
}

// ParseAccess decodes an access token and requires every claim to be
// present: subject, session, jti, roles and groups. Revocation-cache
// membership is the caller's job; decode success alone never grants access.
func (c *Codec) ParseAccess(raw string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := c.parse(raw, &claims); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeAccess ||
		claims.Subject == "" || claims.SessionID == "" || claims.ID == "" ||
		claims.Roles == nil || claims.Groups == nil {
		return nil, ErrInvalid
	}
	return &claims, nil
}

// SignRefresh mints a refresh token whose jti is the rotation handle stored
// on the session.
func (c *Codec) SignRefresh(userID, sessionID, tokenID string, ttl time.Duration) (string, error) {
	return c.sign(RefreshClaims{
		SessionID:        sessionID,
		Purpose:          PurposeRefresh,
		RegisteredClaims: c.registered(userID, tokenID, ttl),
	})
}

// ParseRefresh decodes a refresh token. Matching the live session is the
// caller's job.
func (c *Codec) ParseRefresh(raw string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := c.parse(raw, &claims); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeRefresh ||
		claims.Subject == "" || claims.SessionID == "" || claims.ID == "" {
		return nil, ErrInvalid
	}
	return &claims, nil
}

// SignStepUp mints a step-up token for the exact (user, session) pair.
func (c *Codec) SignStepUp(userID, sessionID string, ttl time.Duration) (string, error) {
	return c.sign(StepUpClaims{
		SessionID:        sessionID,
		Purpose:          PurposeStepUp,
		RegisteredClaims: c.registered(userID, "", ttl),
	})
}

// ParseStepUp decodes a step-up token and enforces both bindings
// independently: the token's user must equal userID and its session must
// equal sessionID. A stolen step-up token replayed across sessions or users
// fails here.
func (c *Codec) ParseStepUp(raw, userID, sessionID string) (*StepUpClaims, error) {
	var claims StepUpClaims
	if err := c.parse(raw, &claims); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeStepUp || claims.Subject == "" || claims.SessionID == "" {
		return nil, ErrInvalid
	}
	if claims.Subject != userID {
		return nil, ErrInvalid
	}
	if claims.SessionID != sessionID {
		return nil, ErrInvalid
	}
	return &claims, nil
}

// SignTwoFactor mints the intermediate first-factor-passed token.
func (c *Codec) SignTwoFactor(userID string, ttl time.Duration) (string, error) {
	return c.sign(TwoFactorClaims{
		Purpose:          PurposeTwoFactor,
		RegisteredClaims: c.registered(userID, "", ttl),
	})
}

// ParseTwoFactor decodes a two-factor token.
func (c *Codec) ParseTwoFactor(raw string) (*TwoFactorClaims, error) {
	var claims TwoFactorClaims
	if err := c.parse(raw, &claims); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeTwoFactor || claims.Subject == "" {
		return nil, ErrInvalid
	}
	return &claims, nil
}

// SignSession mints a session-metadata token.
func (c *Codec) SignSession(sessionID, browser, os string, ttl time.Duration) (string, error) {
	return c.sign(SessionClaims{
		SessionID:        sessionID,
		Browser:          browser,
		OS:               os,
		Purpose:          PurposeSession,
		RegisteredClaims: c.registered(sessionID, "", ttl),
	})
}

// ParseSession decodes a session-metadata token.
func (c *Codec) ParseSession(raw string) (*SessionClaims, error) {
	var claims SessionClaims
	if err := c.parse(raw, &claims); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeSession || claims.SessionID == "" {
		return nil, ErrInvalid
	}
	return &claims, nil
}

// SignAction mints a single-action mail token for the given purpose.
func (c *Codec) SignAction(purpose Purpose, userID, email string, ttl time.Duration) (string, error) {
	if purpose != PurposeVerifyEmail && purpose != PurposePasswordReset {
		return "", errors.New("not an action purpose")
	}
	return c.sign(ActionClaims{
		Email:            email,
		Purpose:          purpose,
		RegisteredClaims: c.registered(userID, "", ttl),
	})
}

// ParseAction decodes an action token, requiring the expected purpose. A
// verification token presented to the reset decoder (or vice versa) fails.
func (c *Codec) ParseAction(raw string, purpose Purpose) (*ActionClaims, error) {
	var claims ActionClaims
	if err := c.parse(raw, &claims); err != nil {
		return nil, err
	}
	if claims.Purpose != purpose || claims.Subject == "" {
		return nil, ErrInvalid
	}
	return &claims, nil
}

func (c *Codec) parse(raw string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.leeway > 0 {
		options = append(options, jwt.WithLeeway(c.leeway))
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}
	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return ErrInvalid
	}
	if !tok.Valid {
		return ErrInvalid
	}
	return nil
}
