package gatehouse

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-auth/gatehouse/internal/cooldown"
	"github.com/gatehouse-auth/gatehouse/internal/revocation"
	"github.com/gatehouse-auth/gatehouse/password"
	"github.com/gatehouse-auth/gatehouse/token"
)

// Builder assembles an Engine. Construction is allocation-only until Build,
// which validates the configuration and wires every component.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	users     UserStore
	notifier  Notifier
	geo       Geolocator
	auditSink AuditSink
	built     bool
}

// New returns a builder preloaded with defaults.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the whole configuration. Zero sub-fields keep their
// defaults; an entirely zero Cookie struct takes the secure cookie defaults,
// and [TOTPSkewNone] requests a zero-width drift window where a plain zero
// means "default".
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = mergeConfig(cfg)
	return b
}

// WithRedis sets the client backing the revocation and cooldown caches.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the host's user persistence.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithNotifier sets the mail delivery collaborator.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithGeolocator sets the optional IP-to-location resolver for session
// metadata.
func (b *Builder) WithGeolocator(g Geolocator) *Builder {
	b.geo = g
	return b
}

// WithAuditSink sets the audit event receiver and enables dispatching.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}
	if b.config.TwoFactor.TOTPSkew == TOTPSkewNone {
		b.config.TwoFactor.TOTPSkew = 0
	}

	codec, err := token.NewCodec(b.config.Token.SigningKey, b.config.Token.Issuer, b.config.Token.Leeway)
	if err != nil {
		return nil, err
	}
	var sealer *token.Sealer
	if len(b.config.Token.SetupKey) > 0 {
		sealer, err = token.NewSealer(b.config.Token.SetupKey)
		if err != nil {
			return nil, err
		}
	}

	// Revocation entries must outlive the newest access token minted under
	// them, including the decode leeway.
	revocationTTL := b.config.Token.AccessTTL + b.config.Token.Leeway + time.Minute

	e := &Engine{
		config:     b.config,
		codec:      codec,
		sealer:     sealer,
		revocation: revocation.New(b.redis, "ghv", revocationTTL),
		cooldowns:  cooldown.New(b.redis, "ghc"),
		totp:       newTOTPManager(b.config.TwoFactor),
		hasher:     password.NewHasher(0),
		users:      b.users,
		notifier:   b.notifier,
		geo:        b.geo,
		audit:      newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:    NewMetrics(b.config.Metrics),
		now:        time.Now,
	}
	b.built = true
	return e, nil
}

// mergeConfig fills zero-valued fields of cfg from the defaults so partial
// configurations stay usable.
func mergeConfig(cfg Config) Config {
	def := defaultConfig()
	if cfg.Cookie == (CookieConfig{}) {
		cfg.Cookie = def.Cookie
	}
	if cfg.Token.Issuer == "" {
		cfg.Token.Issuer = def.Token.Issuer
	}
	if cfg.Token.Leeway == 0 {
		cfg.Token.Leeway = def.Token.Leeway
	}
	if cfg.Token.AccessTTL == 0 {
		cfg.Token.AccessTTL = def.Token.AccessTTL
	}
	if cfg.Token.RefreshTTL == 0 {
		cfg.Token.RefreshTTL = def.Token.RefreshTTL
	}
	if cfg.Token.StepUpTTL == 0 {
		cfg.Token.StepUpTTL = def.Token.StepUpTTL
	}
	if cfg.Token.TwoFactorTTL == 0 {
		cfg.Token.TwoFactorTTL = def.Token.TwoFactorTTL
	}
	if cfg.Token.SetupTTL == 0 {
		cfg.Token.SetupTTL = def.Token.SetupTTL
	}
	if cfg.TwoFactor.TOTPIssuer == "" {
		cfg.TwoFactor.TOTPIssuer = def.TwoFactor.TOTPIssuer
	}
	if cfg.TwoFactor.TOTPDigits == 0 {
		cfg.TwoFactor.TOTPDigits = def.TwoFactor.TOTPDigits
	}
	if cfg.TwoFactor.TOTPPeriod == 0 {
		cfg.TwoFactor.TOTPPeriod = def.TwoFactor.TOTPPeriod
	}
	if cfg.TwoFactor.TOTPSkew == 0 {
		cfg.TwoFactor.TOTPSkew = def.TwoFactor.TOTPSkew
	}
	if cfg.TwoFactor.EmailCodeDigits == 0 {
		cfg.TwoFactor.EmailCodeDigits = def.TwoFactor.EmailCodeDigits
	}
	if cfg.TwoFactor.EmailCodeTTL == 0 {
		cfg.TwoFactor.EmailCodeTTL = def.TwoFactor.EmailCodeTTL
	}
	if cfg.TwoFactor.RecoveryCodeCount == 0 {
		cfg.TwoFactor.RecoveryCodeCount = def.TwoFactor.RecoveryCodeCount
	}
	if cfg.TwoFactor.RecoveryCodeLength == 0 {
		cfg.TwoFactor.RecoveryCodeLength = def.TwoFactor.RecoveryCodeLength
	}
	if cfg.Cooldown.TwoFactorEmail == 0 {
		cfg.Cooldown.TwoFactorEmail = def.Cooldown.TwoFactorEmail
	}
	if cfg.Cooldown.VerificationEmail == 0 {
		cfg.Cooldown.VerificationEmail = def.Cooldown.VerificationEmail
	}
	if cfg.Cooldown.PasswordReset == 0 {
		cfg.Cooldown.PasswordReset = def.Cooldown.PasswordReset
	}
	if cfg.Verification.TokenTTL == 0 {
		cfg.Verification.TokenTTL = def.Verification.TokenTTL
	}
	if cfg.PasswordReset.TokenTTL == 0 {
		cfg.PasswordReset.TokenTTL = def.PasswordReset.TokenTTL
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}
	return cfg
}
