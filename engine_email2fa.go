package gatehouse

import "context"

// EnableEmailTwoFactor turns on the email code method. The address must be
// verified first; codes sent to an unverified address prove nothing.
func (e *Engine) EnableEmailTwoFactor(ctx context.Context, userID string) error {
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
	if !user.EmailVerified {
		return ErrNotAuthorized
	}
	user.TwoFactor.Email.Enabled = true
	user.TwoFactor.Enabled = true
	if user.TwoFactor.PreferredMethod == "" {
		user.TwoFactor.PreferredMethod = MethodEmail
	}
	if err := e.users.Save(ctx, user); err != nil {
		return err
	}
	e.emitUserAudit(ctx, auditEmail2FAEnabled, true, user, "", "", nil, nil)
	return nil
}

// DisableEmailTwoFactor removes the email method, with the same
// last-method semantics as DisableTOTP.
func (e *Engine) DisableEmailTwoFactor(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactor.Email.Enabled {
		return ErrTwoFactorDisabled
	}
	user.TwoFactor.Email = EmailTwoFactorSettings{}
	if user.TwoFactor.TOTP.Enabled {
		user.TwoFactor.PreferredMethod = MethodTOTP
	} else {
		user.TwoFactor.Enabled = false
		user.TwoFactor.PreferredMethod = ""
	}
	if err := e.users.Save(ctx, user); err != nil {
		return err
	}
	e.emitUserAudit(ctx, auditEmail2FADisabled, true, user, "", "", nil, nil)
	return nil
}
