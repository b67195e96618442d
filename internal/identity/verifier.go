// Package identity authenticates bearer tokens issued by the hosted identity
// provider. Signature checks use the published JWKS; tokens that fail them
// are introspected server-side before being rejected.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/logger"
)

// ErrInvalidToken is returned when neither the signature check nor
// introspection accepts a token.
var ErrInvalidToken = errors.New("Invalid Supabase JWT.")

type Principal struct {
	UserID string
	Email  string
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

type Options struct {
	// IdentityURL is the project base URL, e.g. https://abc.supabase.co.
	IdentityURL string
	ServiceKey  string
	HTTPClient  *http.Client
	KeyCache    KeySetCache
	Log         *logger.Logger
}

type Verifier struct {
	issuer     string
	jwks       *jwksCache
	introspect *introspector
	log        *logger.Logger
}

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func NewVerifier(opts Options) (*Verifier, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.IdentityURL), "/")
	if base == "" {
		return nil, errors.New("IDENTITY_URL (or SUPABASE_URL) is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Verifier{
		issuer:     base + "/auth/v1",
		jwks:       newJWKSCache(client, base+"/auth/v1/.well-known/jwks.json", opts.KeyCache),
		introspect: &introspector{httpClient: client, url: base + "/auth/v1/user", serviceKey: opts.ServiceKey},
		log:        log,
	}, nil
}

func (v *Verifier) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}

	p, verr := v.verifySignature(ctx, token)
	if verr == nil {
		return p, nil
	}

	p, ierr := v.introspect.user(ctx, token)
	if ierr == nil {
		v.log.Debug("token accepted by introspection", "verify_err", verr.Error())
		return p, nil
	}

	v.log.Info("token rejected", "verify_err", verr.Error(), "introspect_err", ierr.Error())
	return nil, ErrInvalidToken
}

func (v *Verifier) verifySignature(ctx context.Context, token string) (*Principal, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)

	claims := &tokenClaims{}
	tok, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("missing kid")
		}
		return v.jwks.getKey(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if tok == nil || !tok.Valid {
		return nil, errors.New("verify token: invalid")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("verify token: missing sub")
	}
	return &Principal{UserID: claims.Subject, Email: claims.Email}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}
