// Package gate protects destructive and exporting endpoints with a shared
// passphrase. A correct passphrase can be exchanged for a short-lived token.
package gate

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnauthorized = errors.New("invalid passphrase or token")
	// ErrNotConfigured is returned for every check when no passphrase is set.
	ErrNotConfigured = errors.New("gate passphrase is not configured")
)

const (
	DefaultTokenTTL = 15 * time.Minute
	tokenSubject    = "unlock"
	tokenIssuer     = "shiftscan"
)

// Config is the gate part of the service configuration.
type Config struct {
	Passphrase     string        `yaml:"passphrase" json:"-"`
	PassphraseHash string        `yaml:"passphrase_hash" json:"-"`
	TokenSecret    string        `yaml:"token_secret" json:"-"`
	TokenTTL       time.Duration `yaml:"token_ttl" json:"tokenTtl"`
}

type Gate struct {
	hash   []byte
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New builds a gate. A bcrypt hash takes precedence over a plain passphrase.
// Without either the gate rejects everything. Without a token secret a random
// one is generated, so tokens do not survive a restart.
func New(cfg Config) (*Gate, error) {
	g := &Gate{ttl: cfg.TokenTTL, now: time.Now}
	if g.ttl <= 0 {
		g.ttl = DefaultTokenTTL
	}

	switch {
	case cfg.PassphraseHash != "":
		if _, err := bcrypt.Cost([]byte(cfg.PassphraseHash)); err != nil {
			return nil, fmt.Errorf("invalid passphrase hash: %w", err)
		}
		g.hash = []byte(cfg.PassphraseHash)
	case cfg.Passphrase != "":
		h, err := bcrypt.GenerateFromPassword([]byte(cfg.Passphrase), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash passphrase: %w", err)
		}
		g.hash = h
	}

	if cfg.TokenSecret != "" {
		g.secret = []byte(cfg.TokenSecret)
	} else {
		g.secret = make([]byte, 32)
		if _, err := rand.Read(g.secret); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
	}
	return g, nil
}

// Configured reports whether a passphrase is set.
func (g *Gate) Configured() bool { return len(g.hash) > 0 }

// Check compares passphrase with the configured one.
func (g *Gate) Check(passphrase string) error {
	if !g.Configured() {
		return ErrNotConfigured
	}
	if passphrase == "" {
		return ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(passphrase)); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// IssueToken returns a signed unlock token and its expiry.
func (g *Gate) IssueToken() (string, time.Time, error) {
	if !g.Configured() {
		return "", time.Time{}, ErrNotConfigured
	}
	now := g.now()
	exp := now.Add(g.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   tokenSubject,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, exp, nil
}

// VerifyToken accepts tokens issued by this gate that have not expired.
func (g *Gate) VerifyToken(s string) error {
	if !g.Configured() {
		return ErrNotConfigured
	}
	token, err := jwt.ParseWithClaims(s, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(tokenSubject),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !token.Valid {
		return ErrUnauthorized
	}
	return nil
}

// HashPassphrase returns the bcrypt hash to put into gate.passphrase_hash.
func HashPassphrase(passphrase string) (string, error) {
	if passphrase == "" {
		return "", errors.New("passphrase is empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
