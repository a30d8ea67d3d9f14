package gatehouse

import (
	"context"
	"errors"
	"fmt"
)

// dummyHash burns a bcrypt comparison when the email is unknown, so the
// unknown-email and wrong-password paths cost the same.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Login checks credentials and either mints an access+refresh pair or, for
// two-factor accounts, halts with a two-factor token. Unknown email and
// wrong password are indistinguishable in the returned error.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	email := normalizeEmail(req.Email)
	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_, _ = e.hasher.Verify(req.Password, dummyHash)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditLoginFailure, false, "", "", req.Client.IPAddress, ErrUserNotFound,
				map[string]string{"email": email})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		// OAuth2-only account; password login is not an identity it has.
		_, _ = e.hasher.Verify(req.Password, dummyHash)
		e.metricInc(MetricLoginFailure)
		e.emitUserAudit(ctx, auditLoginFailure, false, user, "", req.Client.IPAddress, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}
	ok, err := e.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.metricInc(MetricLoginFailure)
		e.emitUserAudit(ctx, auditLoginFailure, false, user, "", req.Client.IPAddress, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if user.TwoFactor.Enabled {
		methods := user.TwoFactor.EnabledMethods()
		if len(methods) > 0 {
			return e.beginTwoFactor(ctx, user, methods, req.Locale, req.Client)
		}
	}

	sessionID, client := e.resolveSessionMeta(req.SessionToken, req.Client)
	pair, err := e.mintTokenPair(ctx, user, sessionID, client)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricLoginSuccess)
	e.emitUserAudit(ctx, auditLoginSuccess, true, user, sessionID, client.IPAddress, nil, nil)
	return &LoginResult{UserID: user.ID, Tokens: pair}, nil
}

// beginTwoFactor mints the intermediate token and, when the preferred method
// is email, proactively dispatches a code. An active cooldown skips the
// dispatch silently; repeated login attempts during a cooldown are not
// errors.
func (e *Engine) beginTwoFactor(ctx context.Context, user *User, methods []TwoFactorMethod, locale string, client ClientInfo) (*LoginResult, error) {
	raw, err := e.codec.SignTwoFactor(user.ID, e.config.Token.TwoFactorTTL)
	if err != nil {
		return nil, err
	}
	if e.preferredMethod(user, methods) == MethodEmail {
		if err := e.dispatchEmailCode(ctx, user, locale, true); err != nil {
			return nil, err
		}
	}
	e.metricInc(MetricTwoFactorRequired)
	e.emitUserAudit(ctx, auditTwoFactorRequired, true, user, "", client.IPAddress, nil, nil)
	return &LoginResult{
		UserID:            user.ID,
		TwoFactorRequired: true,
		TwoFactorToken:    raw,
		Methods:           methods,
	}, nil
}

func (e *Engine) preferredMethod(user *User, enabled []TwoFactorMethod) TwoFactorMethod {
	for _, m := range enabled {
		if m == user.TwoFactor.PreferredMethod {
			return m
		}
	}
	if len(enabled) == 1 {
		return enabled[0]
	}
	return ""
}

// Principal is the resolved caller identity for one request, derived from a
// validated access token. It is passed explicitly to every method that needs
// "who is calling"; there is no ambient security context.
type Principal struct {
	UserID    string
	SessionID string
	TokenID   string
	Roles     []string
	Groups    []string
}

// Authenticate validates a raw access token: signature, expiry, required
// claims, and revocation-cache membership. A structurally valid but revoked
// token fails exactly like a forged one.
func (e *Engine) Authenticate(ctx context.Context, raw string) (*Principal, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims, err := e.codec.ParseAccess(raw)
	if err != nil {
		return nil, mapTokenError(err)
	}
	live, err := e.revocation.Contains(ctx, claims.Subject, claims.SessionID, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if !live {
		e.metricInc(MetricAccessRevokedReject)
		return nil, ErrInvalidToken
	}
	return &Principal{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		TokenID:   claims.ID,
		Roles:     claims.Roles,
		Groups:    claims.Groups,
	}, nil
}

// AuthenticateOrNil is the soft-auth variant: any validation failure yields
// (nil, nil) instead of an error, for endpoints that behave differently for
// anonymous callers. Backend outages still propagate.
func (e *Engine) AuthenticateOrNil(ctx context.Context, raw string) (*Principal, error) {
	p, err := e.Authenticate(ctx, raw)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}
