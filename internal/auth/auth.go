// Package auth checks credentials against the user store and issues session
// tokens. Authorization doubles as registration: an unknown username is
// created with the presented password, a known username with the wrong
// password is rejected.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/James-Trimble/PlayPalace11/internal/protocol"
	"github.com/James-Trimble/PlayPalace11/internal/store"
)

// Manager authenticates users and mints JWT session tokens.
type Manager struct {
	store    store.Store
	secret   []byte
	tokenTTL time.Duration
	log      *logrus.Entry
}

// New builds a Manager. The secret signs session tokens; tokenTTL bounds
// how long a token may be replayed for auto-rejoin.
func New(st store.Store, secret []byte, tokenTTL time.Duration, log *logrus.Logger) *Manager {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Manager{
		store:    st,
		secret:   secret,
		tokenTTL: tokenTTL,
		log:      log.WithField("component", "auth"),
	}
}

// Authenticate resolves credentials to an identity. Unknown usernames are
// registered on the spot with the presented password.
func (m *Manager) Authenticate(ctx context.Context, username, password, locale string) (string, error) {
	if username == "" || password == "" {
		return "", protocol.E(protocol.CodeCredentialsRejected, "error-credentials-rejected")
	}

	u, err := m.store.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return m.register(ctx, username, password, locale)
	}
	if err != nil {
		return "", fmt.Errorf("auth: lookup %q: %w", username, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", protocol.E(protocol.CodeCredentialsRejected, "error-credentials-rejected")
	}
	if locale != "" && locale != u.Locale {
		if err := m.store.UpdateUserLocale(ctx, username, locale); err != nil {
			m.log.WithError(err).WithField("user", username).Warn("locale update failed")
		}
	}
	return username, nil
}

func (m *Manager) register(ctx context.Context, username, password, locale string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	if locale == "" {
		locale = "en"
	}
	u := store.User{
		Username:     username,
		PasswordHash: string(hash),
		Locale:       locale,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrExists) {
			// Lost a registration race; validate against the account that
			// won instead of touching its password.
			return m.Authenticate(ctx, username, password, locale)
		}
		return "", fmt.Errorf("auth: create %q: %w", username, err)
	}
	m.log.WithField("user", username).Info("registered new account")
	return username, nil
}

// IssueToken mints a signed session token for identity.
func (m *Manager) IssueToken(identity string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   identity,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken resolves a session token back to its identity.
func (m *Manager) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", protocol.E(protocol.CodeCredentialsRejected, "error-invalid-token")
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", protocol.E(protocol.CodeCredentialsRejected, "error-invalid-token")
	}
	return claims.Subject, nil
}
