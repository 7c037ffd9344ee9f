// Package token mints and verifies the signed bearer tokens issued to
// privileged subjects. A token's cryptographic validity is necessary but not
// sufficient: revocation lives entirely in the session registry, so callers
// needing full validity must also check registry liveness.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims is what a verified token asserts about its subject.
type Claims struct {
	ID       string
	Username string
}

type Issuer struct {
	secret  []byte
	issuer  string
	expiry  time.Duration
	nowFunc func() time.Time
}

type IssuerOption func(*Issuer)

func WithExpiry(expiry time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.expiry = expiry
	}
}

func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

func WithIssuer(issuer string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = issuer
	}
}

func New(secret string, options ...IssuerOption) *Issuer {
	i := &Issuer{
		secret:  []byte(secret),
		issuer:  "crm-access-server",
		expiry:  24 * time.Hour,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// Issue signs a token carrying the subject's id and username.
func (i *Issuer) Issue(id, username string) (string, error) {
	now := i.nowFunc()
	claims := jwt.MapClaims{
		"iss":      i.issuer,
		"sub":      id,
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(i.expiry).Unix(),
		"jti":      uuid.New().String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.Issue] SignedString")
	}
	return signed, nil
}

// Verify checks signature and expiry only; it never consults the registry.
func (i *Issuer) Verify(rawToken string) (*Claims, error) {
	parsed, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.nowFunc))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	username, _ := claims["username"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}
	return &Claims{ID: sub, Username: username}, nil
}
