// Package auth mints and verifies the HS256 access and refresh tokens
// handed out by the server.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/market/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the smallest HS256 key accepted by NewCodec.
const MinSecretLength = 32

// TokenType tells access tokens and refresh tokens apart.
type TokenType string

const (
	TokenAccess  TokenType = "ACCESS"
	TokenRefresh TokenType = "REFRESH"
)

func (t TokenType) valid() bool {
	return t == TokenAccess || t == TokenRefresh
}

// Claims is the JWT payload: registered claims plus the token type and the
// roles of the subject at mint time.
type Claims struct {
	jwt.RegisteredClaims
	Type  TokenType `json:"typ"`
	Roles []string  `json:"roles,omitempty"`
}

// Token is a verified token.
type Token struct {
	Subject   string
	Type      TokenType
	Issuer    string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Roles     []string
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Roles  []string
}

// HasRole reports whether the principal carries role.
func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// TokenPair is the result of a successful login, registration or rotation.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Codec signs and verifies tokens with a shared secret. It holds no mutable
// state and is safe for concurrent use.
type Codec struct {
	secret          []byte
	issuer          string
	accessValidity  time.Duration
	refreshValidity time.Duration
}

func NewCodec(secret []byte, issuer string, accessValidity, refreshValidity time.Duration) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("secret must be at least %d bytes", MinSecretLength)
	}
	if issuer == "" {
		return nil, errors.New("issuer must not be empty")
	}
	// exp and iat are stored with second precision
	if accessValidity < time.Second || refreshValidity < time.Second {
		return nil, errors.New("token validity must be at least one second")
	}
	return &Codec{
		secret:          secret,
		issuer:          issuer,
		accessValidity:  accessValidity,
		refreshValidity: refreshValidity,
	}, nil
}

func (c *Codec) validity(typ TokenType) time.Duration {
	if typ == TokenRefresh {
		return c.refreshValidity
	}
	return c.accessValidity
}

// ExpiresAt returns the expiry a token of type typ minted at now carries.
func (c *Codec) ExpiresAt(typ TokenType, now time.Time) time.Time {
	return jwt.NewNumericDate(now.Add(c.validity(typ))).Time
}

// Mint signs a new token for subject. Every token gets a random jti, so two
// tokens minted in the same instant still differ.
func (c *Codec) Mint(subject string, typ TokenType, roles []string, now time.Time) (string, error) {
	if subject == "" || !typ.valid() {
		return "", common.ErrInvalidInput
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.validity(typ))),
		},
		Type:  typ,
		Roles: roles,
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verify checks signature, issuer and expiry of tokenString as of now.
// Only a well-formed token signed by us whose expiry has passed yields
// common.ErrTokenExpired; every other failure is common.ErrInvalidToken.
func (c *Codec) Verify(tokenString string, now time.Time) (*Token, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if !token.Valid || claims.Subject == "" || !claims.Type.valid() || claims.IssuedAt == nil {
		return nil, common.ErrInvalidToken
	}

	return &Token{
		Subject:   claims.Subject,
		Type:      claims.Type,
		Issuer:    claims.Issuer,
		ID:        claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		Roles:     claims.Roles,
	}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return common.ErrInvalidToken
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	default:
		return common.ErrInvalidToken
	}
}

// IsType reports whether tok is valid for use as typ.
func (t *Token) IsType(typ TokenType) bool {
	return t != nil && t.Type == typ
}

// IssuePair mints an access token and a refresh token for userID.
func (c *Codec) IssuePair(userID string, roles []string, now time.Time) (*TokenPair, error) {
	access, err := c.Mint(userID, TokenAccess, roles, now)
	if err != nil {
		return nil, err
	}

	refresh, err := c.Mint(userID, TokenRefresh, roles, now)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshExpiresAt: c.ExpiresAt(TokenRefresh, now),
	}, nil
}
