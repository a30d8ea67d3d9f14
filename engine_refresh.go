package gatehouse

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Refresh exchanges a refresh token for a new access+refresh pair. The token
// is valid only while its id matches the live session's refresh-token id;
// the swap is a store-level compare-and-swap, so of two concurrent requests
// presenting the same token at most one can rotate it; the loser fails
// exactly like any other invalid token. Wrong user, wrong session and
// already-rotated all collapse to ErrInvalidToken; the distinction exists
// only in the audit trail.
func (e *Engine) Refresh(ctx context.Context, rawRefresh string, sessionToken string, client ClientInfo) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.codec.ParseRefresh(rawRefresh)
	if err != nil {
		return nil, mapTokenError(err)
	}

	user, err := e.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.auditRefreshReject(ctx, claims.Subject, claims.SessionID, client, ErrUserNotFound)
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	stored, ok := user.Session(claims.SessionID)
	if !ok {
		e.auditRefreshReject(ctx, user.ID, claims.SessionID, client, ErrSessionNotFound)
		return nil, ErrInvalidToken
	}

	// A session token re-presents client-declared device metadata for
	// clients that cannot carry it in the request itself. It is only
	// honored for the session being refreshed.
	if sessionToken != "" {
		if sc, scErr := e.codec.ParseSession(sessionToken); scErr == nil && sc.SessionID == claims.SessionID {
			if client.Browser == "" {
				client.Browser = sc.Browser
			}
			if client.OS == "" {
				client.OS = sc.OS
			}
		}
	}

	next := stored
	next.RefreshTokenID = uuid.NewString()
	next.IssuedAt = e.now()
	if client.Browser != "" {
		next.Browser = client.Browser
	}
	if client.OS != "" {
		next.OS = client.OS
	}
	if client.IPAddress != "" {
		next.IPAddress = client.IPAddress
		if e.geo != nil {
			if loc, locErr := e.geo.Locate(ctx, client.IPAddress); locErr == nil {
				next.Location = loc
			}
		}
	}

	swapped, err := e.users.SwapSessionToken(ctx, user.ID, claims.SessionID, claims.ID, next)
	if err != nil {
		return nil, err
	}
	if !swapped {
		// Stale token id: this refresh token was already rotated.
		e.auditRefreshReject(ctx, user.ID, claims.SessionID, client, ErrInvalidToken)
		return nil, ErrInvalidToken
	}

	accessTokenID := uuid.NewString()
	if err := e.revocation.Add(ctx, user.ID, claims.SessionID, accessTokenID); err != nil {
		return nil, err
	}
	access, expiry, err := e.codec.SignAccess(user.ID, claims.SessionID, accessTokenID, user.Roles, user.Groups, e.config.Token.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := e.codec.SignRefresh(user.ID, claims.SessionID, next.RefreshTokenID, e.config.Token.RefreshTTL)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitUserAudit(ctx, auditRefreshSuccess, true, user, claims.SessionID, client.IPAddress, nil, nil)
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    claims.SessionID,
		AccessExpiry: expiry,
	}, nil
}

func (e *Engine) auditRefreshReject(ctx context.Context, userID, sessionID string, client ClientInfo, cause error) {
	e.metricInc(MetricRefreshRejected)
	e.emitAudit(ctx, auditRefreshRejected, false, userID, sessionID, client.IPAddress, cause, nil)
}
