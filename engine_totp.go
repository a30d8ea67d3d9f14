package gatehouse

import (
	"context"
	"errors"

	"github.com/gatehouse-auth/gatehouse/internal"
)

// totpSetupPayload travels inside the sealed setup token. The secret and
// hashed recovery codes exist nowhere else until the setup is confirmed.
type totpSetupPayload struct {
	UserID         string   `json:"uid"`
	Secret         []byte   `json:"sec"`
	RecoveryHashes [][]byte `json:"rch"`
}

// BeginTOTPSetup generates a TOTP secret, recovery codes and the sealed
// setup token. Nothing is written to the user record; an abandoned setup
// simply expires with its token. The plaintext recovery codes are shown here
// once.
func (e *Engine) BeginTOTPSetup(ctx context.Context, userID string) (*TOTPSetup, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.sealer == nil {
		return nil, errors.New("totp setup requires a setup key")
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	secret, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	codes, err := internal.NewRecoveryCodes(e.config.TwoFactor.RecoveryCodeCount, e.config.TwoFactor.RecoveryCodeLength)
	if err != nil {
		return nil, err
	}
	hashes, err := e.hashRecoveryCodes(codes)
	if err != nil {
		return nil, err
	}

	setupToken, err := e.sealer.Seal(totpSetupPayload{
		UserID:         user.ID,
		Secret:         secret,
		RecoveryHashes: hashes,
	}, e.config.Token.SetupTTL)
	if err != nil {
		return nil, err
	}

	return &TOTPSetup{
		SecretBase32:  secretBase32,
		URI:           e.totp.ProvisionURI(secretBase32, user.Email),
		RecoveryCodes: codes,
		SetupToken:    setupToken,
	}, nil
}

// ConfirmTOTPSetup validates the first code against the secret embedded in
// the setup token and, on match, persists the secret and recovery hashes and
// enables the method. Every existing session is destroyed: enabling a second
// factor invalidates all logins that predate it. A wrong code leaves the
// user's TOTP state untouched.
func (e *Engine) ConfirmTOTPSetup(ctx context.Context, userID, setupToken, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.sealer == nil {
		return errors.New("totp setup requires a setup key")
	}
	var payload totpSetupPayload
	if err := e.sealer.Open(setupToken, &payload); err != nil {
		return mapTokenError(err)
	}
	if payload.UserID != userID {
		return ErrInvalidToken
	}
	step, ok, err := e.totp.VerifyCode(payload.Secret, code, e.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrTwoFactorCodeInvalid
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	user.TwoFactor.TOTP = TOTPSettings{
		Enabled:            true,
		Secret:             payload.Secret,
		RecoveryCodeHashes: payload.RecoveryHashes,
		LastUsedStep:       step,
	}
	user.TwoFactor.Enabled = true
	if user.TwoFactor.PreferredMethod == "" {
		user.TwoFactor.PreferredMethod = MethodTOTP
	}
	if err := e.clearAllSessions(ctx, user); err != nil {
		return err
	}
	e.emitUserAudit(ctx, auditTOTPSetup, true, user, "", "", nil, nil)
	return nil
}

// DisableTOTP removes the TOTP method. When another method remains enabled,
// two-factor authentication stays on with that method; disabling the last
// method turns two-factor off entirely.
func (e *Engine) DisableTOTP(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactor.TOTP.Enabled {
		return ErrTwoFactorDisabled
	}
	user.TwoFactor.TOTP = TOTPSettings{}
	if user.TwoFactor.Email.Enabled {
		user.TwoFactor.PreferredMethod = MethodEmail
	} else {
		user.TwoFactor.Enabled = false
		user.TwoFactor.PreferredMethod = ""
	}
	if err := e.users.Save(ctx, user); err != nil {
		return err
	}
	e.emitUserAudit(ctx, auditTOTPDisabled, true, user, "", "", nil, nil)
	return nil
}

// RegenerateRecoveryCodes replaces the recovery-code set. A current TOTP
// code is required; recovery codes cannot authorize their own regeneration.
func (e *Engine) RegenerateRecoveryCodes(ctx context.Context, userID, totpCode string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := e.checkTOTPCode(ctx, user, totpCode); err != nil {
		return nil, err
	}
	codes, err := internal.NewRecoveryCodes(e.config.TwoFactor.RecoveryCodeCount, e.config.TwoFactor.RecoveryCodeLength)
	if err != nil {
		return nil, err
	}
	hashes, err := e.hashRecoveryCodes(codes)
	if err != nil {
		return nil, err
	}
	user.TwoFactor.TOTP.RecoveryCodeHashes = hashes
	if err := e.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return codes, nil
}

func (e *Engine) hashRecoveryCodes(codes []string) ([][]byte, error) {
	hashes := make([][]byte, len(codes))
	for i, code := range codes {
		h, err := e.hasher.HashCode(code)
		if err != nil {
			return nil, err
		}
		hashes[i] = []byte(h)
	}
	return hashes, nil
}
