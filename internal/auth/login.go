package auth

import (
	"fmt"
	"time"
)

// Authenticator issues operator tokens against the configured password
// hash and validates tokens presented to the API.
type Authenticator struct {
	deviceID     string
	secret       string
	passwordHash string
	accessTTL    time.Duration
}

// AuthenticatorConfig holds the settings for an Authenticator.
type AuthenticatorConfig struct {
	DeviceID string
	Secret   string

	// PasswordHash is the operator's Argon2id PHC string. Empty disables login.
	PasswordHash string

	AccessTTL time.Duration
}

// NewAuthenticator creates an Authenticator. The secret is required.
func NewAuthenticator(cfg AuthenticatorConfig) (*Authenticator, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("auth: jwt secret is required")
	}
	return &Authenticator{
		deviceID:     cfg.DeviceID,
		secret:       cfg.Secret,
		passwordHash: cfg.PasswordHash,
		accessTTL:    cfg.AccessTTL,
	}, nil
}

// Login checks the operator password and returns a fresh access token.
func (a *Authenticator) Login(password string) (IssuedToken, error) {
	if a.passwordHash == "" {
		return IssuedToken{}, ErrLoginDisabled
	}

	ok, err := VerifyPassword(password, a.passwordHash)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("verifying operator password: %w", err)
	}
	if !ok {
		return IssuedToken{}, ErrInvalidCredentials
	}

	return GenerateOperatorToken(a.deviceID, a.secret, a.accessTTL)
}

// Validate parses token and returns its claims.
func (a *Authenticator) Validate(token string) (*Claims, error) {
	return ParseToken(token, a.secret)
}
