package gatehouse

import "context"

// The authorization view works strictly on an already-validated [Principal];
// it never re-validates tokens. Validation is Authenticate's job, invoked
// upstream, and every method here takes the principal explicitly; there is
// no ambient security context to consult.

// UserIDOrEmpty returns the principal's user id, or "" for a nil principal.
// The soft-auth counterpart of requiring authentication.
func (p *Principal) UserIDOrEmpty() string {
	if p == nil {
		return ""
	}
	return p.UserID
}

// HasRole reports whether the principal carries the role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// InGroup reports whether the principal is a member of the group.
func (p *Principal) InGroup(key string) bool {
	if p == nil {
		return false
	}
	for _, g := range p.Groups {
		if g == key {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal carries the admin role.
func (p *Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// RequireRole fails with ErrNotAuthorized when the principal lacks the role.
func (p *Principal) RequireRole(role string) error {
	if p == nil {
		return ErrInvalidPrincipal
	}
	if !p.HasRole(role) {
		return ErrNotAuthorized
	}
	return nil
}

// RequireGroup fails with ErrNotAuthorized when the principal is not a
// member of the group. Admins bypass membership checks.
func (p *Principal) RequireGroup(key string) error {
	if p == nil {
		return ErrInvalidPrincipal
	}
	if p.IsAdmin() || p.InGroup(key) {
		return nil
	}
	return ErrNotAuthorized
}

// RequireStepUp demands proof of recent re-authentication: the raw step-up
// token must decode and bind to the principal's exact (user, session) pair.
func (e *Engine) RequireStepUp(ctx context.Context, p *Principal, rawStepUp string) error {
	return e.VerifyStepUp(ctx, rawStepUp, p)
}
