package gatehouse

import (
	"context"
	"sort"
)

// Logout ends the caller's own session: the revocation-cache entry is
// removed first, so the session's unexpired access tokens die immediately,
// then the session entry is deleted from the user.
func (e *Engine) Logout(ctx context.Context, p *Principal) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if p == nil {
		return ErrInvalidPrincipal
	}
	if err := e.deleteSession(ctx, p.UserID, p.SessionID); err != nil {
		return err
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditLogout, true, p.UserID, p.SessionID, "", nil, nil)
	return nil
}

// Sessions lists the user's live sessions, newest first.
func (e *Engine) Sessions(ctx context.Context, userID string) ([]Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(user.Sessions))
	for _, s := range user.Sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].IssuedAt.After(sessions[j].IssuedAt)
	})
	return sessions, nil
}

// DeleteSession removes one session and revokes its access tokens. An
// unknown session id is a no-op, not an error: the end state, session gone,
// is already satisfied.
func (e *Engine) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.deleteSession(ctx, userID, sessionID); err != nil {
		return err
	}
	e.emitAudit(ctx, auditSessionDeleted, true, userID, sessionID, "", nil, nil)
	return nil
}

func (e *Engine) deleteSession(ctx context.Context, userID, sessionID string) error {
	// Cache first: even if the user save fails, the tokens are already
	// dead and a retry converges.
	if err := e.revocation.InvalidateSession(ctx, userID, sessionID); err != nil {
		return err
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if _, ok := user.Sessions[sessionID]; !ok {
		return nil
	}
	delete(user.Sessions, sessionID)
	return e.users.Save(ctx, user)
}

// DeleteAllSessions is "log out everywhere": every session entry is cleared
// and every access token across all sessions revoked.
func (e *Engine) DeleteAllSessions(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := e.clearAllSessions(ctx, user); err != nil {
		return err
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditLogoutAll, true, userID, "", "", nil, nil)
	return nil
}
