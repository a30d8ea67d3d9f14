package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	gatehouse "github.com/gatehouse-auth/gatehouse"
)

// Cookie names written and read by the adapter.
const (
	CookieAccess    = "gh_access"
	CookieRefresh   = "gh_refresh"
	CookieTwoFactor = "gh_2fa"
	CookieSession   = "gh_session"
)

// Adapter writes engine tokens into HTTP responses and reads them back out
// of requests. Cookie attributes come from the engine's [gatehouse.CookieConfig];
// lifetimes come from its token configuration.
type Adapter struct {
	engine *gatehouse.Engine
	cfg    gatehouse.CookieConfig
	tok    gatehouse.TokenConfig
}

// New builds an adapter bound to engine's effective configuration.
func New(engine *gatehouse.Engine) *Adapter {
	cfg := engine.Config()
	return &Adapter{engine: engine, cfg: cfg.Cookie, tok: cfg.Token}
}

// SetTokenPair writes the access and refresh cookies. The access cookie's
// maxAge is derived from the pair's expiry so the browser drops it in step
// with the token itself.
func (a *Adapter) SetTokenPair(w http.ResponseWriter, pair *gatehouse.TokenPair) {
	http.SetCookie(w, a.build(CookieAccess, pair.AccessToken, maxAgeUntil(pair.AccessExpiry)))
	http.SetCookie(w, a.build(CookieRefresh, pair.RefreshToken, int(a.tok.RefreshTTL/time.Second)))
}

// ClearTokenPair expires the access and refresh cookies, typically after
// logout.
func (a *Adapter) ClearTokenPair(w http.ResponseWriter) {
	http.SetCookie(w, a.build(CookieAccess, "", -1))
	http.SetCookie(w, a.build(CookieRefresh, "", -1))
}

// SetTwoFactorCookie stores the short-lived two-factor token between the
// password step and the code step of a login.
func (a *Adapter) SetTwoFactorCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, a.build(CookieTwoFactor, token, int(a.tok.TwoFactorTTL/time.Second)))
}

// ClearTwoFactorCookie overwrites the two-factor cookie with an empty value.
// Call it on every response that consumed the token, success or failure.
func (a *Adapter) ClearTwoFactorCookie(w http.ResponseWriter) {
	http.SetCookie(w, a.build(CookieTwoFactor, "", -1))
}

// SetSessionCookie stores a session token so a returning client reuses its
// session slot instead of growing the user's session list.
func (a *Adapter) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, a.build(CookieSession, token, int(a.tok.RefreshTTL/time.Second)))
}

// AccessToken locates the raw access token in the request. The Authorization
// header and the access cookie are consulted in the configured preference
// order; header extraction is skipped entirely when disabled.
func (a *Adapter) AccessToken(r *http.Request) (string, error) {
	if a.cfg.AllowHeader && a.cfg.HeaderFirst {
		if raw, ok := bearerToken(r.Header.Get("Authorization")); ok {
			return raw, nil
		}
	}
	if c, err := r.Cookie(CookieAccess); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if a.cfg.AllowHeader && !a.cfg.HeaderFirst {
		if raw, ok := bearerToken(r.Header.Get("Authorization")); ok {
			return raw, nil
		}
	}
	return "", gatehouse.ErrInvalidToken
}

// RefreshToken reads the refresh cookie.
func (a *Adapter) RefreshToken(r *http.Request) (string, error) {
	return a.cookieValue(r, CookieRefresh)
}

// TwoFactorToken reads the two-factor cookie.
func (a *Adapter) TwoFactorToken(r *http.Request) (string, error) {
	return a.cookieValue(r, CookieTwoFactor)
}

// SessionToken reads the session cookie. A missing cookie is not an error;
// it returns the empty string for first-time clients.
func (a *Adapter) SessionToken(r *http.Request) string {
	if c, err := r.Cookie(CookieSession); err == nil {
		return c.Value
	}
	return ""
}

// Authenticate extracts the access token and resolves it through the
// engine. All validity decisions, revocation included, happen engine-side.
func (a *Adapter) Authenticate(r *http.Request) (*gatehouse.Principal, error) {
	raw, err := a.AccessToken(r)
	if err != nil {
		return nil, err
	}
	return a.engine.Authenticate(r.Context(), raw)
}

// AuthenticateOrNil is the soft variant: a request without any token yields
// (nil, nil), while a present-but-bad token still fails.
func (a *Adapter) AuthenticateOrNil(r *http.Request) (*gatehouse.Principal, error) {
	raw, err := a.AccessToken(r)
	if err != nil {
		return nil, nil
	}
	return a.engine.Authenticate(r.Context(), raw)
}

func (a *Adapter) cookieValue(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", gatehouse.ErrInvalidToken
	}
	return c.Value, nil
}

func (a *Adapter) build(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   a.cfg.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.cfg.Secure,
		SameSite: a.cfg.SameSite,
	}
}

func maxAgeUntil(expiry time.Time) int {
	d := time.Until(expiry)
	if d <= 0 {
		return -1
	}
	return int(d / time.Second)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}

type principalContextKey struct{}

// PrincipalFromContext returns the principal injected by [Guard].
func PrincipalFromContext(ctx context.Context) (*gatehouse.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*gatehouse.Principal)
	return p, ok
}

// Guard rejects requests whose access token does not resolve to a valid
// principal and injects the principal into the request context otherwise.
func Guard(adapter *Adapter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adapter == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			p, err := adapter.Authenticate(r)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole wraps Guard with a role check. Admins pass implicitly.
func RequireRole(adapter *Adapter, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return Guard(adapter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := PrincipalFromContext(r.Context())
			if err := p.RequireRole(role); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
