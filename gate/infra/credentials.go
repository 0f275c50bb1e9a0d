package infra

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"reading-gate/gate/domain"
)

const (
	actionUnlock    = "unlock"
	defaultNonceTTL = 12 * time.Hour
	defaultIssuer   = "reading-gate"
)

// JWTSigner emite nonces anti-forgery por ação e a credencial de desbloqueio,
// ambos como JWT HS256 com claim "act".
type JWTSigner struct {
	secret   []byte
	issuer   string
	nonceTTL time.Duration
	now      func() time.Time
}

type gateClaims struct {
	Action string `json:"act"`
	jwt.RegisteredClaims
}

type SignerOption func(*JWTSigner)

func WithNonceTTL(d time.Duration) SignerOption {
	return func(s *JWTSigner) { s.nonceTTL = d }
}

func WithSignerClock(now func() time.Time) SignerOption {
	return func(s *JWTSigner) { s.now = now }
}

func NewJWTSigner(secret []byte, opts ...SignerOption) (*JWTSigner, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret is required")
	}
	s := &JWTSigner{
		secret:   secret,
		issuer:   defaultIssuer,
		nonceTTL: defaultNonceTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *JWTSigner) sign(action, subject string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims := gateClaims{
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", action, err)
	}
	return signed, exp, nil
}

func (s *JWTSigner) verify(action, raw string) bool {
	if raw == "" {
		return false
	}
	var claims gateClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return err == nil && claims.Action == action
}

func (s *JWTSigner) IssueUnlock(visitorID string, ttl time.Duration) (domain.Credential, error) {
	v, exp, err := s.sign(actionUnlock, visitorID, ttl)
	if err != nil {
		return domain.Credential{}, err
	}
	return domain.Credential{Value: v, ExpiresAt: exp}, nil
}

func (s *JWTSigner) VerifyUnlock(value string) bool {
	return s.verify(actionUnlock, value)
}

func (s *JWTSigner) IssueNonce(action string) (string, error) {
	if action == "" || action == actionUnlock {
		return "", fmt.Errorf("invalid nonce action %q", action)
	}
	v, _, err := s.sign(action, "", s.nonceTTL)
	return v, err
}

func (s *JWTSigner) VerifyNonce(action, nonce string) bool {
	if action == actionUnlock {
		return false
	}
	return s.verify(action, nonce)
}

var (
	_ domain.CredentialIssuer = (*JWTSigner)(nil)
	_ domain.NonceIssuer      = (*JWTSigner)(nil)
)
