package gatehouse

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gatehouse-auth/gatehouse/internal/cooldown"
	"github.com/gatehouse-auth/gatehouse/internal/revocation"
	"github.com/gatehouse-auth/gatehouse/password"
	"github.com/gatehouse-auth/gatehouse/token"
)

// Engine is the authentication core. Construct it through [Builder.Build];
// all methods are safe for concurrent use afterwards.
type Engine struct {
	config     Config
	codec      *token.Codec
	sealer     *token.Sealer
	revocation *revocation.Cache
	cooldowns  *cooldown.Gate
	totp       *totpManager
	hasher     *password.Hasher
	users      UserStore
	notifier   Notifier
	geo        Geolocator
	audit      *auditDispatcher
	metrics    *Metrics
	now        func() time.Time
}

// Config returns a copy of the effective configuration after defaults
// were merged in. Mutating the copy has no effect on the engine.
func (e *Engine) Config() Config {
	return e.config
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// MetricsSnapshot copies the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events the dispatcher discarded.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, sessionID, ip string, cause error, meta map[string]string) {
	e.dispatchAudit(ctx, eventType, success, userID, "", sessionID, ip, cause, meta)
}

// emitUserAudit is emitAudit for call sites holding the loaded user; it
// stamps the event with the user's tenant.
func (e *Engine) emitUserAudit(ctx context.Context, eventType string, success bool, user *User, sessionID, ip string, cause error, meta map[string]string) {
	e.dispatchAudit(ctx, eventType, success, user.ID, user.TenantID, sessionID, ip, cause, meta)
}

func (e *Engine) dispatchAudit(ctx context.Context, eventType string, success bool, userID, tenantID, sessionID, ip string, cause error, meta map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: e.now(),
		EventType: eventType,
		UserID:    userID,
		TenantID:  tenantID,
		SessionID: sessionID,
		IP:        ip,
		Success:   success,
		Metadata:  meta,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	e.audit.Emit(ctx, event)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// resolveSessionMeta picks the session identity and metadata for a login or
// refresh. A valid session token reuses the client-declared session id and
// device info; anything else gets a fresh id. An unparseable session token is
// ignored rather than failing the login.
func (e *Engine) resolveSessionMeta(sessionToken string, client ClientInfo) (string, ClientInfo) {
	if sessionToken != "" {
		if claims, err := e.codec.ParseSession(sessionToken); err == nil {
			if claims.Browser != "" {
				client.Browser = claims.Browser
			}
			if claims.OS != "" {
				client.OS = claims.OS
			}
			return claims.SessionID, client
		}
	}
	return uuid.NewString(), client
}

// buildSession assembles the session entry persisted on the user.
// Geolocation failures degrade to a session without location.
func (e *Engine) buildSession(ctx context.Context, sessionID, refreshTokenID string, client ClientInfo) Session {
	sess := Session{
		ID:             sessionID,
		RefreshTokenID: refreshTokenID,
		Browser:        client.Browser,
		OS:             client.OS,
		IssuedAt:       e.now(),
		IPAddress:      client.IPAddress,
	}
	if e.geo != nil && client.IPAddress != "" {
		if loc, err := e.geo.Locate(ctx, client.IPAddress); err == nil {
			sess.Location = loc
		}
	}
	return sess
}

// mintTokenPair creates the session entry on the user, persists it, registers
// the access-token id in the revocation cache and signs both tokens. The
// signed artifacts are returned only after the cache registration succeeded,
// so no token is ever handed out in a half-issued state.
func (e *Engine) mintTokenPair(ctx context.Context, user *User, sessionID string, client ClientInfo) (*TokenPair, error) {
	refreshTokenID := uuid.NewString()
	accessTokenID := uuid.NewString()

	if user.Sessions == nil {
		user.Sessions = make(map[string]Session)
	}
	user.Sessions[sessionID] = e.buildSession(ctx, sessionID, refreshTokenID, client)
	if err := e.users.Save(ctx, user); err != nil {
		return nil, err
	}

	if err := e.revocation.Add(ctx, user.ID, sessionID, accessTokenID); err != nil {
		return nil, err
	}

	access, expiry, err := e.codec.SignAccess(user.ID, sessionID, accessTokenID, user.Roles, user.Groups, e.config.Token.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := e.codec.SignRefresh(user.ID, sessionID, refreshTokenID, e.config.Token.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sessionID,
		AccessExpiry: expiry,
	}, nil
}

// IssueSessionToken mints a session-metadata token the client presents back
// at login or refresh when it cannot carry cookies itself.
func (e *Engine) IssueSessionToken(sessionID string, client ClientInfo) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return e.codec.SignSession(sessionID, client.Browser, client.OS, e.config.Token.RefreshTTL)
}
