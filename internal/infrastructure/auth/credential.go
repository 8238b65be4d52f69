// Package auth provides the credential provider strategy. Session
// issuance lives in an external collaborator; this package only adapts an
// issued identity into the (role, ownerId, token) tuple the channel and
// gateway consume.
package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/foodhub/ordersync/internal/domain/order"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
	ErrMissingRole   = errors.New("missing role in claims")
	ErrMissingOwner  = errors.New("missing owner_id in claims")
)

// Credential is the opaque identity tuple consumed by the sync core
type Credential struct {
	Role    order.Role
	OwnerID string
	Token   string
}

// Provider supplies the current credential. Implementations are selected
// once at startup; the channel and gateway depend only on this interface.
type Provider interface {
	Credential(ctx context.Context) (Credential, error)
}

// StaticProvider returns a fixed credential taken from configuration.
type StaticProvider struct {
	credential Credential
}

// NewStaticProvider creates a provider for a pre-resolved identity
func NewStaticProvider(role order.Role, ownerID, token string) (*StaticProvider, error) {
	if !role.IsValid() {
		return nil, ErrMissingRole
	}
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	return &StaticProvider{credential: Credential{Role: role, OwnerID: ownerID, Token: token}}, nil
}

// Credential implements Provider
func (p *StaticProvider) Credential(_ context.Context) (Credential, error) {
	return p.credential, nil
}

// Claims are the custom JWT claims issued by the auth collaborator
type Claims struct {
	jwt.RegisteredClaims
	Role    string `json:"role"`
	OwnerID string `json:"owner_id"`
}

// JWTProvider derives the identity tuple from an issued JWT, verifying
// the signature with a shared secret.
type JWTProvider struct {
	secret []byte
	token  string
}

// NewJWTProvider creates a provider that parses identity out of the token
func NewJWTProvider(token string, secret []byte) *JWTProvider {
	return &JWTProvider{secret: secret, token: token}
}

// Credential implements Provider
func (p *JWTProvider) Credential(_ context.Context) (Credential, error) {
	claims, err := p.parse()
	if err != nil {
		return Credential{}, err
	}
	role := order.Role(claims.Role)
	if !role.IsValid() {
		return Credential{}, ErrMissingRole
	}
	if claims.OwnerID == "" {
		return Credential{}, ErrMissingOwner
	}
	return Credential{Role: role, OwnerID: claims.OwnerID, Token: p.token}, nil
}

func (p *JWTProvider) parse() (*Claims, error) {
	token, err := jwt.ParseWithClaims(p.token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}
