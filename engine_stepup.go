package gatehouse

import "context"

// StepUp re-verifies the caller's password and mints a short-lived step-up
// token bound to the caller's exact (user, session) pair. Holding an access
// token is the only precondition; the principal must come from
// Authenticate.
func (e *Engine) StepUp(ctx context.Context, p *Principal, currentPassword string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if p == nil {
		return "", ErrInvalidPrincipal
	}
	user, err := e.users.FindByID(ctx, p.UserID)
	if err != nil {
		return "", err
	}
	if user.PasswordHash == "" {
		e.metricInc(MetricStepUpDenied)
		return "", ErrInvalidCredentials
	}
	ok, err := e.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return "", err
	}
	if !ok {
		e.metricInc(MetricStepUpDenied)
		e.emitAudit(ctx, auditStepUpDenied, false, p.UserID, p.SessionID, "", ErrInvalidCredentials, nil)
		return "", ErrInvalidCredentials
	}
	raw, err := e.codec.SignStepUp(p.UserID, p.SessionID, e.config.Token.StepUpTTL)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricStepUpIssued)
	e.emitAudit(ctx, auditStepUpIssued, true, p.UserID, p.SessionID, "", nil, nil)
	return raw, nil
}

// stepUpForRecovery issues a step-up token without password re-entry. It is
// deliberately unexported and called from exactly one place, the
// recovery-code login: compile-time gating instead of a runtime route check,
// so misuse from another path cannot exist.
func (e *Engine) stepUpForRecovery(userID, sessionID string) (string, error) {
	raw, err := e.codec.SignStepUp(userID, sessionID, e.config.Token.StepUpTTL)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricStepUpIssued)
	return raw, nil
}

// VerifyStepUp validates a step-up token against the caller's current
// principal. Both bindings, user and session, are checked independently;
// a token minted for any other session or user fails.
func (e *Engine) VerifyStepUp(_ context.Context, raw string, p *Principal) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if p == nil {
		return ErrInvalidPrincipal
	}
	if _, err := e.codec.ParseStepUp(raw, p.UserID, p.SessionID); err != nil {
		return mapTokenError(err)
	}
	return nil
}
