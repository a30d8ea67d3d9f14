package gatehouse

import (
	"context"
	"time"
)

// TwoFactorMethod identifies a second-factor mechanism.
type TwoFactorMethod string

const (
	// MethodTOTP is RFC 6238 time-based one-time passwords.
	MethodTOTP TwoFactorMethod = "totp"
	// MethodEmail is a random numeric code delivered by email.
	MethodEmail TwoFactorMethod = "email"
	// MethodRecoveryCode is a one-time recovery code minted at TOTP setup.
	MethodRecoveryCode TwoFactorMethod = "recovery"
)

// RoleAdmin bypasses group-membership checks in RequireGroup.
const RoleAdmin = "admin"

// User is the persisted account document. gatehouse references it through
// [UserStore] but never owns storage. Sessions are embedded in the document,
// keyed by session id; tokens hold only the session id as a back-reference.
type User struct {
	ID           string
	TenantID     string
	Email        string
	// PasswordHash is empty when the account only has OAuth2 identities.
	PasswordHash  string
	EmailVerified bool
	// Guest accounts have no email and cannot receive verification or
	// password-reset mail.
	Guest      bool
	Roles      []string
	Groups     []string
	Identities []Identity
	TwoFactor  TwoFactorSettings
	Sessions   map[string]Session
}

// Identity is one identity-provider binding on the account. Provider is
// "password" or an OAuth2 provider key; Subject is the provider-side id.
type Identity struct {
	Provider string
	Subject  string
}

// HasRole reports whether the user carries the role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Session returns the stored session for id, or false when absent.
func (u *User) Session(id string) (Session, bool) {
	s, ok := u.Sessions[id]
	return s, ok
}

// SessionIDs lists the ids of all live sessions.
func (u *User) SessionIDs() []string {
	ids := make([]string, 0, len(u.Sessions))
	for id := range u.Sessions {
		ids = append(ids, id)
	}
	return ids
}

// TwoFactorSettings is the per-user two-factor configuration. Secrets live
// here only after a setup has been confirmed; unconfirmed secrets travel
// solely inside the sealed setup token.
type TwoFactorSettings struct {
	Enabled         bool
	PreferredMethod TwoFactorMethod
	TOTP            TOTPSettings
	Email           EmailTwoFactorSettings
}

// EnabledMethods lists the methods currently usable at login.
func (t TwoFactorSettings) EnabledMethods() []TwoFactorMethod {
	var methods []TwoFactorMethod
	if t.TOTP.Enabled {
		methods = append(methods, MethodTOTP)
	}
	if t.Email.Enabled {
		methods = append(methods, MethodEmail)
	}
	return methods
}

// TOTPSettings holds the confirmed TOTP state.
type TOTPSettings struct {
	Enabled bool
	Secret  []byte
	// RecoveryCodeHashes are bcrypt hashes of the unconsumed recovery codes.
	// Validation removes exactly one hash per successful use.
	RecoveryCodeHashes [][]byte
	// LastUsedStep is the highest TOTP time step already accepted. Codes at
	// or below it are rejected even inside the drift window.
	LastUsedStep int64
}

// EmailTwoFactorSettings holds the email-method state, including the single
// pending code awaiting validation.
type EmailTwoFactorSettings struct {
	Enabled       bool
	PendingCode   string
	CodeExpiresAt time.Time
}

// Session is one (device, refresh-token-lineage) pair on the user. It is
// created at login/registration, its RefreshTokenID is replaced on every
// rotation, and it is destroyed by logout, explicit removal or "logout all".
type Session struct {
	ID             string
	RefreshTokenID string
	Browser        string
	OS             string
	IssuedAt       time.Time
	IPAddress      string
	Location       *Location
}

// Location is a resolved geolocation for session metadata.
type Location struct {
	Latitude    float64
	Longitude   float64
	City        string
	CountryCode string
}

// ClientInfo carries per-request client metadata into session creation.
// All fields are optional.
type ClientInfo struct {
	Browser   string
	OS        string
	IPAddress string
}

// UserStore is the persistence interface the host must implement. Find
// methods return ErrUserNotFound (or an error wrapping it) for unknown keys.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, user *User) error

	// SwapSessionToken atomically replaces the session's refresh-token id,
	// but only while it still equals expect. It returns false without
	// writing when the session is gone or the id has already moved on.
	// This is the compare-and-swap that makes refresh rotation single-use
	// under concurrent requests.
	SwapSessionToken(ctx context.Context, userID, sessionID, expect string, next Session) (bool, error)
}

// Notifier delivers a message to an address. Rendering and transport are the
// host's concern; gatehouse supplies subject, body and locale.
type Notifier interface {
	Send(ctx context.Context, address, subject, body, locale string) error
}

// Geolocator resolves an IP address to a coarse location for session
// metadata. Implementations may return (nil, nil) when unresolvable.
type Geolocator interface {
	Locate(ctx context.Context, ip string) (*Location, error)
}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Email    string
	Password string
	Locale   string
	// TenantID scopes the account for multi-tenant hosts. Optional; it is
	// stored on the user and stamped on audit events.
	TenantID string
	Client   ClientInfo
}

// LoginRequest is the input for [Engine.Login].
type LoginRequest struct {
	Email    string
	Password string
	Locale   string
	Client   ClientInfo
	// SessionToken optionally carries client-declared session metadata
	// minted by IssueSessionToken across the login boundary.
	SessionToken string
}

// TokenPair is a freshly minted access + refresh token set.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	AccessExpiry time.Time
}

// LoginResult is returned by Login and the two-factor confirmation calls.
// When TwoFactorRequired is set, only TwoFactorToken and Methods are
// populated; no access or refresh token is ever issued alongside it.
type LoginResult struct {
	UserID            string
	TwoFactorRequired bool
	TwoFactorToken    string
	Methods           []TwoFactorMethod
	Tokens            *TokenPair
	// StepUpToken is set only by recovery-code login, the one flow where
	// step-up trust is granted without a prior access token.
	StepUpToken string
}

// TOTPSetup is returned by [Engine.BeginTOTPSetup]. The plaintext recovery
// codes appear here once and are never recoverable afterwards; SetupToken is
// the sealed carrier of the unconfirmed secret.
type TOTPSetup struct {
	SecretBase32  string
	URI           string
	RecoveryCodes []string
	SetupToken    string
}
