package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type distinguishes the two token lineages.
type Type string

const (
	// TypeAccess is the short-lived bearer token for authenticated requests.
	TypeAccess Type = "access"
	// TypeRefresh is the long-lived token exchanged for a fresh pair.
	TypeRefresh Type = "refresh"
)

var (
	// ErrMalformed indicates input that is not a parseable three-segment token.
	ErrMalformed = errors.New("token malformed")
	// ErrSignature indicates the HMAC did not verify.
	ErrSignature = errors.New("token signature invalid")
	// ErrExpired indicates exp is in the past on an otherwise valid token.
	ErrExpired = errors.New("token expired")
	// ErrIssuer indicates the iss claim does not match the configured issuer.
	ErrIssuer = errors.New("token issuer mismatch")
	// ErrAudience indicates the aud claim does not match the configured audience.
	ErrAudience = errors.New("token audience mismatch")
	// ErrWrongType indicates a verified token of the other lineage.
	ErrWrongType = errors.New("wrong token type")
)

// refreshDeriveLabel keys the HMAC derivation of a missing refresh secret.
// Changing it invalidates every refresh token issued under the derived key.
const refreshDeriveLabel = "authkit/refresh-secret/v1"

// Claims is the full claim set carried by both token types.
type Claims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType Type   `json:"token_type"`
	jwt.RegisteredClaims
}

// Config holds issuance and verification parameters for a [Codec].
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// Codec issues and verifies HS256 tokens. Safe for concurrent use.
type Codec struct {
	config         Config
	derivedRefresh bool
}

func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if len(cfg.AccessSecret) < 32 {
		return nil, errors.New("access secret must be at least 32 bytes")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	derived := false
	if len(cfg.RefreshSecret) == 0 {
		cfg.RefreshSecret = deriveSecret(cfg.AccessSecret, refreshDeriveLabel)
		derived = true
	} else if len(cfg.RefreshSecret) < 32 {
		return nil, errors.New("refresh secret must be at least 32 bytes")
	}

	return &Codec{config: cfg, derivedRefresh: derived}, nil
}

// DerivedRefreshSecret reports whether the refresh secret was derived from the
// access secret rather than configured. Callers should treat this as a
// degraded deployment and log it once at startup.
func (c *Codec) DerivedRefreshSecret() bool {
	return c.derivedRefresh
}

// Issue signs a token of the given type for the principal. The returned time
// is the token's expiry.
func (c *Codec) Issue(subject, email, role string, typ Type) (string, time.Time, error) {
	now := time.Now()

	ttl := c.config.AccessTTL
	if typ == TypeRefresh {
		ttl = c.config.RefreshTTL
	}
	expiresAt := now.Add(ttl)

	claims := Claims{
		Email:     email,
		Role:      role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secretFor(typ))
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// Verify parses and validates a token, requiring the given type. The type
// check runs after signature and claim validation so a forged token never
// reaches it.
func (c *Codec) Verify(tokenStr string, want Type) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if c.config.Audience != "" {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.secretFor(want), nil
	})
	if err != nil {
		mapped := mapParseError(err)
		if errors.Is(mapped, ErrSignature) && c.verifiesUnder(parser, tokenStr, otherType(want)) {
			// Valid token of the other lineage: report the confusion, not
			// a forgery.
			return nil, ErrWrongType
		}
		return nil, mapped
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.TokenType != want {
		return nil, ErrWrongType
	}
	if claims.Subject == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}

// Fingerprint returns the hex SHA-256 of the raw compact token. Revocation
// state is keyed by fingerprint so raw tokens are never stored.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (c *Codec) verifiesUnder(parser *jwt.Parser, tokenStr string, typ Type) bool {
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.secretFor(typ), nil
	})
	if err != nil || !parsed.Valid {
		return false
	}
	claims, ok := parsed.Claims.(*Claims)
	return ok && claims.TokenType == typ
}

func otherType(typ Type) Type {
	if typ == TypeAccess {
		return TypeRefresh
	}
	return TypeAccess
}

func (c *Codec) secretFor(typ Type) []byte {
	if typ == TypeRefresh {
		return c.config.RefreshSecret
	}
	return c.config.AccessSecret
}

func deriveSecret(base []byte, label string) []byte {
	mac := hmac.New(sha256.New, base)
	mac.Write([]byte(label))
	return mac.Sum(nil)
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudience
	default:
		return ErrMalformed
	}
}
