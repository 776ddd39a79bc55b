package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTokenTTL = 15 * time.Minute
	defaultPanelTokenTTL  = 365 * 24 * time.Hour
	tokenIssuer           = "indicator"
)

// Claims extends JWT standard claims with the indicator's role.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// IssuedToken is a signed token and its expiry.
type IssuedToken struct {
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GenerateOperatorToken creates a short-lived operator access token.
// A non-positive ttl uses the 15 minute default.
func GenerateOperatorToken(deviceID, secret string, ttl time.Duration) (IssuedToken, error) {
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}
	return signToken("operator@"+deviceID, RoleOperator, secret, ttl)
}

// GeneratePanelToken creates a long-lived token for a panel surface.
// A non-positive ttl uses the one year default.
func GeneratePanelToken(panelID, secret string, ttl time.Duration) (IssuedToken, error) {
	if panelID == "" {
		return IssuedToken{}, fmt.Errorf("%w: panel id is required", ErrTokenInvalid)
	}
	if ttl <= 0 {
		ttl = defaultPanelTokenTTL
	}
	return signToken(panelID, RolePanel, secret, ttl)
}

func signToken(subject string, role Role, secret string, ttl time.Duration) (IssuedToken, error) {
	now := time.Now()
	expires := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return IssuedToken{}, fmt.Errorf("signing %s token: %w", role, err)
	}
	return IssuedToken{Token: signed, ExpiresAt: expires.UTC()}, nil
}

// ParseToken validates and parses a token, returning its claims.
// It checks the signature, expiry, issuer and role.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	if !IsValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}

	return claims, nil
}
