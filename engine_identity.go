package gatehouse

import "context"

// ConnectIdentity binds an identity provider to the account. Each provider
// may be bound at most once.
func (e *Engine) ConnectIdentity(ctx context.Context, userID string, identity Identity) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if identity.Provider == "" {
		return ErrCannotConnectProvider
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	for _, id := range user.Identities {
		if id.Provider == identity.Provider {
			return ErrCannotConnectProvider
		}
	}
	user.Identities = append(user.Identities, identity)
	if err := e.users.Save(ctx, user); err != nil {
		return err
	}
	e.emitUserAudit(ctx, auditIdentityConnected, true, user, "", "", nil,
		map[string]string{"provider": identity.Provider})
	return nil
}

// DisconnectIdentity removes a provider binding. The last identity can never
// be removed (the account would become unreachable) and removing the
// password identity also drops the stored hash.
func (e *Engine) DisconnectIdentity(ctx context.Context, userID, provider string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	idx := -1
	for i, id := range user.Identities {
		if id.Provider == provider {
			idx = i
			break
		}
	}
	if idx < 0 || len(user.Identities) <= 1 {
		return ErrCannotDisconnectProvider
	}
	user.Identities = append(user.Identities[:idx:idx], user.Identities[idx+1:]...)
	if provider == ProviderPassword {
		user.PasswordHash = ""
	}
	if err := e.users.Save(ctx, user); err != nil {
		return err
	}
	e.emitUserAudit(ctx, auditIdentityRemoved, true, user, "", "", nil,
		map[string]string{"provider": provider})
	return nil
}
