package gatehouse

import (
	"errors"
	"net/http"
	"time"
)

// Config is the full engine configuration. Zero values are filled from
// defaultConfig by the builder; Build rejects configurations that would
// weaken the token state machine (missing keys, non-positive TTLs).
type Config struct {
	Token         TokenConfig
	Cookie        CookieConfig
	TwoFactor     TwoFactorConfig
	Cooldown      CooldownConfig
	Verification  VerificationConfig
	PasswordReset PasswordResetConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

// TokenConfig holds signing material and the per-kind TTLs.
type TokenConfig struct {
	// SigningKey is the HMAC key shared by all token kinds. Purpose tagging
	// inside the codec keeps the kinds mutually unacceptable regardless.
	SigningKey []byte
	// SetupKey encrypts TOTP setup tokens (AES-128/256 depending on length).
	SetupKey []byte
	Issuer   string
	// Leeway is the clock-skew tolerance applied to every decode.
	Leeway       time.Duration
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	StepUpTTL    time.Duration
	TwoFactorTTL time.Duration
	SetupTTL     time.Duration
}

// CookieConfig shapes the transport adapter defaults handed to hosts. An
// entirely zero CookieConfig takes the secure defaults (Secure, strict
// SameSite, header extraction allowed); setting any field keeps the struct
// verbatim.
type CookieConfig struct {
	Secure bool
	// HeaderFirst prefers the Authorization header over cookies when both
	// carry a token.
	HeaderFirst bool
	// AllowHeader enables bearer-header extraction at all.
	AllowHeader bool
	SameSite    http.SameSite
	Domain      string
}

// TOTPSkewNone requests a zero-width drift window explicitly. A plain zero
// TOTPSkew means "unset" and is filled with the default by the builder.
const TOTPSkewNone = -1

// TwoFactorConfig controls the TOTP algorithm and email-code shape.
type TwoFactorConfig struct {
	TOTPIssuer string
	TOTPDigits int
	TOTPPeriod int
	// TOTPSkew is the accepted drift in time steps, each direction. Use
	// TOTPSkewNone to reject any drift; zero takes the default.
	TOTPSkew           int
	EmailCodeDigits    int
	EmailCodeTTL       time.Duration
	RecoveryCodeCount  int
	RecoveryCodeLength int
}

// CooldownConfig sets the windows for repeated notification dispatch.
type CooldownConfig struct {
	TwoFactorEmail    time.Duration
	VerificationEmail time.Duration
	PasswordReset     time.Duration
}

// VerificationConfig controls registration email verification.
type VerificationConfig struct {
	// Enabled gates sending a verification mail after Register.
	Enabled  bool
	TokenTTL time.Duration
}

// PasswordResetConfig controls the reset-token flow.
type PasswordResetConfig struct {
	Enabled  bool
	TokenTTL time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:       "gatehouse",
			Leeway:       30 * time.Second,
			AccessTTL:    10 * time.Minute,
			RefreshTTL:   30 * 24 * time.Hour,
			StepUpTTL:    5 * time.Minute,
			TwoFactorTTL: 5 * time.Minute,
			SetupTTL:     10 * time.Minute,
		},
		Cookie: CookieConfig{
			Secure:      true,
			AllowHeader: true,
			SameSite:    http.SameSiteStrictMode,
		},
		TwoFactor: TwoFactorConfig{
			TOTPIssuer:         "gatehouse",
			TOTPDigits:         6,
			TOTPPeriod:         30,
			TOTPSkew:           1,
			EmailCodeDigits:    6,
			EmailCodeTTL:       10 * time.Minute,
			RecoveryCodeCount:  8,
			RecoveryCodeLength: 10,
		},
		Cooldown: CooldownConfig{
			TwoFactorEmail:    30 * time.Second,
			VerificationEmail: 60 * time.Second,
			PasswordReset:     60 * time.Second,
		},
		Verification: VerificationConfig{
			Enabled:  true,
			TokenTTL: 24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:  true,
			TokenTTL: 30 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

func validateConfig(cfg Config) error {
	if len(cfg.Token.SigningKey) == 0 {
		return errors.New("token signing key required")
	}
	switch len(cfg.Token.SetupKey) {
	case 0, 16, 24, 32:
	default:
		return errors.New("setup key must be 16, 24 or 32 bytes")
	}
	if cfg.Token.AccessTTL <= 0 || cfg.Token.RefreshTTL <= 0 ||
		cfg.Token.StepUpTTL <= 0 || cfg.Token.TwoFactorTTL <= 0 ||
		cfg.Token.SetupTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if cfg.Token.Leeway < 0 || cfg.Token.Leeway > 2*time.Minute {
		return errors.New("invalid leeway configuration")
	}
	if cfg.Token.AccessTTL >= cfg.Token.RefreshTTL {
		return errors.New("access TTL must be shorter than refresh TTL")
	}
	if cfg.TwoFactor.TOTPDigits < 6 || cfg.TwoFactor.TOTPDigits > 8 {
		return errors.New("totp digits must be 6..8")
	}
	if cfg.TwoFactor.TOTPPeriod <= 0 {
		return errors.New("totp period must be positive")
	}
	if cfg.TwoFactor.TOTPSkew < TOTPSkewNone || cfg.TwoFactor.TOTPSkew > 2 {
		return errors.New("totp skew must be 0..2 steps")
	}
	if cfg.TwoFactor.EmailCodeDigits < 6 || cfg.TwoFactor.EmailCodeDigits > 10 {
		return errors.New("email code digits must be 6..10")
	}
	if cfg.TwoFactor.RecoveryCodeCount <= 0 || cfg.TwoFactor.RecoveryCodeLength < 8 {
		return errors.New("invalid recovery code configuration")
	}
	return nil
}
