package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 5 * time.Minute

var (
	ErrEmptySecret       = errors.New("auth: empty secret")
	ErrEmptyOrganization = errors.New("auth: empty organization")
	ErrInvalidToken      = errors.New("auth: invalid token")
)

// WalletClaims identifies the organization the engine acts for against the
// wallet service.
type WalletClaims struct {
	OrganizationID string `json:"organization_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs short-lived HS256 wallet tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs an issuer. A non-positive ttl falls back to five minutes.
func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// IssueWalletToken returns a bearer token for orgID.
func (i *TokenIssuer) IssueWalletToken(orgID string) (string, error) {
	if orgID == "" {
		return "", ErrEmptyOrganization
	}
	now := i.now().UTC()
	claims := WalletClaims{
		OrganizationID: orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   orgID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// ParseWalletToken validates a wallet token and returns its claims.
func ParseWalletToken(tokenString string, secret []byte) (*WalletClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	claims := &WalletClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.OrganizationID == "" {
		return nil, ErrEmptyOrganization
	}
	return claims, nil
}
