package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kmercart/kmercart-api/internal/users"
)

const issuer = "kmercart"

// Claims is the payload of both token kinds; Subject carries the user id.
type Claims struct {
	Email string     `json:"email"`
	Role  users.Role `json:"role"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"` // access token lifetime in seconds
}

// Issuer signs access and refresh tokens with separate HS256 secrets.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// Issue returns a fresh pair; the refresh token id is returned so the caller
// can remember which refresh token is current.
func (i *Issuer) Issue(u users.User) (TokenPair, string, error) {
	now := i.now()
	access, err := i.sign(u, now, i.accessTTL, "", i.accessSecret)
	if err != nil {
		return TokenPair{}, "", err
	}
	refreshID := uuid.NewString()
	refresh, err := i.sign(u, now, i.refreshTTL, refreshID, i.refreshSecret)
	if err != nil {
		return TokenPair{}, "", err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(i.accessTTL.Seconds()),
	}, refreshID, nil
}

func (i *Issuer) sign(u users.User, now time.Time, ttl time.Duration, id string, secret []byte) (string, error) {
	claims := &Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func (i *Issuer) ParseAccess(token string) (*Claims, error) {
	return i.parse(token, i.accessSecret)
}

func (i *Issuer) ParseRefresh(token string) (*Claims, error) {
	return i.parse(token, i.refreshSecret)
}

func (i *Issuer) parse(token string, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
