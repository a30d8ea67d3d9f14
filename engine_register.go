package gatehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gatehouse-auth/gatehouse/token"
)

const (
	cooldownVerification = "verify"
	cooldownReset        = "reset"
	cooldownTwoFactor    = "2fa"

	// ProviderPassword is the identity key for password-based accounts.
	ProviderPassword = "password"
)

// Register creates a password account and logs it in. The address must be
// free; the check is against the normalized (lowercased, trimmed) form.
// When email verification is enabled a verification mail is dispatched,
// subject to the cooldown gate.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	taken, err := e.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}
	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:           uuid.NewString(),
		TenantID:     req.TenantID,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{"user"},
		Groups:       []string{},
		Identities:   []Identity{{Provider: ProviderPassword, Subject: email}},
		Sessions:     map[string]Session{},
	}

	sessionID, client := e.resolveSessionMeta("", req.Client)
	pair, err := e.mintTokenPair(ctx, user, sessionID, client)
	if err != nil {
		return nil, err
	}

	if e.config.Verification.Enabled {
		// A failed or cooled-down verification mail never fails
		// registration; the user can re-request it.
		_ = e.sendVerificationMail(ctx, user, req.Locale)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitUserAudit(ctx, auditRegister, true, user, sessionID, client.IPAddress, nil, nil)
	return &LoginResult{UserID: user.ID, Tokens: pair}, nil
}

// RequestEmailVerification re-sends the verification mail for the user.
// Guests have no address to verify and already-verified accounts get the
// idempotent ErrEmailAlreadyVerified, not a fault.
func (e *Engine) RequestEmailVerification(ctx context.Context, userID, locale string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Guest || user.Email == "" {
		return ErrGuestAccount
	}
	if user.EmailVerified {
		return ErrEmailAlreadyVerified
	}
	return e.sendVerificationMail(ctx, user, locale)
}

func (e *Engine) sendVerificationMail(ctx context.Context, user *User, locale string) error {
	won, err := e.cooldowns.Acquire(ctx, cooldownVerification, user.Email, e.config.Cooldown.VerificationEmail)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if !won {
		remaining, _ := e.cooldowns.Remaining(ctx, cooldownVerification, user.Email)
		return &CooldownError{Remaining: remaining}
	}
	raw, err := e.codec.SignAction(token.PurposeVerifyEmail, user.ID, user.Email, e.config.Verification.TokenTTL)
	if err != nil {
		return err
	}
	if e.notifier == nil {
		return nil
	}
	if err := e.notifier.Send(ctx, user.Email, "Verify your email address", raw, locale); err != nil {
		return err
	}
	e.metricInc(MetricVerificationSent)
	e.emitUserAudit(ctx, auditVerificationSent, true, user, "", "", nil, nil)
	return nil
}

// ConfirmEmailVerification validates a verification token and marks the
// address verified. A token minted for a previous address is rejected.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, raw string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	claims, err := e.codec.ParseAction(raw, token.PurposeVerifyEmail)
	if err != nil {
		return mapTokenError(err)
	}
	user, err := e.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if user.Email != claims.Email {
		return ErrInvalidToken
	}
	if user.EmailVerified {
		return ErrEmailAlreadyVerified
	}
	user.EmailVerified = true
	if err := e.users.Save(ctx, user); err != nil {
		return err
	}
	e.emitUserAudit(ctx, auditVerified, true, user, "", "", nil, nil)
	return nil
}

// RequestPasswordReset dispatches a reset mail. Unknown addresses return
// success without sending anything, and the cooldown is registered for them
// all the same, so response behavior never reveals whether an account
// exists.
func (e *Engine) RequestPasswordReset(ctx context.Context, email, locale string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return ErrNotAuthorized
	}
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}
	won, err := e.cooldowns.Acquire(ctx, cooldownReset, email, e.config.Cooldown.PasswordReset)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if !won {
		remaining, _ := e.cooldowns.Remaining(ctx, cooldownReset, email)
		return &CooldownError{Remaining: remaining}
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	if user.Guest {
		return nil
	}
	raw, err := e.codec.SignAction(token.PurposePasswordReset, user.ID, user.Email, e.config.PasswordReset.TokenTTL)
	if err != nil {
		return err
	}
	if e.notifier != nil {
		if err := e.notifier.Send(ctx, user.Email, "Reset your password", raw, locale); err != nil {
			return err
		}
	}
	e.metricInc(MetricPasswordResetSent)
	e.emitUserAudit(ctx, auditResetRequested, true, user, "", "", nil, nil)
	return nil
}

// ConfirmPasswordReset validates a reset token and replaces the password.
// Every session is destroyed and every access token revoked: a reset is the
// recovery path for a compromised credential.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, raw, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	claims, err := e.codec.ParseAction(raw, token.PurposePasswordReset)
	if err != nil {
		return mapTokenError(err)
	}
	user, err := e.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if user.Email != claims.Email {
		return ErrInvalidToken
	}
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := e.clearAllSessions(ctx, user); err != nil {
		return err
	}
	e.emitUserAudit(ctx, auditResetConfirmed, true, user, "", "", nil, nil)
	return nil
}

// ChangePassword replaces the password for an authenticated principal. The
// old password is re-checked here regardless of session age, and every
// session except the caller's own is destroyed.
func (e *Engine) ChangePassword(ctx context.Context, p *Principal, oldPassword, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if p == nil {
		return ErrInvalidPrincipal
	}
	user, err := e.users.FindByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	ok, err := e.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash

	var others []string
	for id := range user.Sessions {
		if id != p.SessionID {
			others = append(others, id)
			delete(user.Sessions, id)
		}
	}
	if err := e.users.Save(ctx, user); err != nil {
		return err
	}
	if err := e.revocation.InvalidateUser(ctx, user.ID, others); err != nil {
		return err
	}
	e.emitUserAudit(ctx, auditPasswordChanged, true, user, p.SessionID, "", nil, nil)
	return nil
}

// clearAllSessions removes every session entry and revokes every access
// token, then persists the user.
func (e *Engine) clearAllSessions(ctx context.Context, user *User) error {
	ids := user.SessionIDs()
	user.Sessions = map[string]Session{}
	if err := e.users.Save(ctx, user); err != nil {
		return err
	}
	return e.revocation.InvalidateUser(ctx, user.ID, ids)
}

// mapTokenError collapses codec failures into the public taxonomy: expiry
// stays distinguishable, everything else becomes ErrInvalidToken.
func mapTokenError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	default:
		return ErrInvalidToken
	}
}
