// Package auth verifies the bearer tokens issued by the identity provider. The
// service never issues customer credentials itself; tokens carry the customer id
// in sub and an optional role claim.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-resto/internal/common"
)

// RoleClaim is the private claim holding the caller's role.
const RoleClaim = "role"

// Roles understood by the router.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Claims are the identity facts extracted from a verified token.
type Claims struct {
	Subject string
	Role    string
}

// Verifier checks HS256 tokens against a shared secret.
type Verifier struct {
	Secret    []byte
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Now       func() time.Time
}

func (v Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func unauthorized(err error) error {
	return common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
}

// Parse verifies the signature and the registered claims of token.
func (v Verifier) Parse(token string) (Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	if len(v.Secret) == 0 {
		return Claims{}, errors.New("auth: verifier secret not configured")
	}
	algorithm, err := tokenAlgorithm(trimmed)
	if err != nil {
		return Claims{}, unauthorized(err)
	}
	if algorithm != jwa.HS256 {
		return Claims{}, unauthorized(fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(jwa.HS256, v.Secret), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, unauthorized(err)
	}
	if err := v.validate(parsed); err != nil {
		return Claims{}, unauthorized(err)
	}
	if strings.TrimSpace(parsed.Subject()) == "" {
		return Claims{}, unauthorized(errors.New("auth: token missing subject"))
	}
	claims := Claims{Subject: parsed.Subject(), Role: RoleCustomer}
	if raw, ok := parsed.Get(RoleClaim); ok {
		if role, ok := raw.(string); ok && role != "" {
			claims.Role = role
		}
	}
	return claims, nil
}

// Issue signs a token for subject. It is used by the seeder and by tests; real
// customer tokens come from the identity provider.
func (v Verifier) Issue(subject, role string, ttl time.Duration) (string, error) {
	now := v.now()
	b := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(ttl))
	if v.Issuer != "" {
		b = b.Issuer(v.Issuer)
	}
	if v.Audience != "" {
		b = b.Audience([]string{v.Audience})
	}
	if role != "" {
		b = b.Claim(RoleClaim, role)
	}
	tok, err := b.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, v.Secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

func (v Verifier) validate(tok jwt.Token) error {
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(v.now)),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	return jwt.Validate(tok, options...)
}

func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: token must carry exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil || headers.Algorithm() == "" {
		return "", errors.New("auth: token missing algorithm")
	}
	return headers.Algorithm(), nil
}
