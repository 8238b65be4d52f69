package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodhub/ordersync/internal/domain/order"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func TestStaticProvider(t *testing.T) {
	p, err := NewStaticProvider(order.RoleRestaurant, "rest-1", "opaque-token")
	require.NoError(t, err)

	cred, err := p.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, order.RoleRestaurant, cred.Role)
	assert.Equal(t, "rest-1", cred.OwnerID)
	assert.Equal(t, "opaque-token", cred.Token)

	_, err = NewStaticProvider(order.Role("driver"), "x", "t")
	assert.ErrorIs(t, err, ErrMissingRole)

	_, err = NewStaticProvider(order.RoleCustomer, "", "t")
	assert.ErrorIs(t, err, ErrMissingOwner)
}

func TestJWTProvider_ParsesIdentity(t *testing.T) {
	token := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role:    "customer",
		OwnerID: "cust-42",
	})

	p := NewJWTProvider(token, testSecret)
	cred, err := p.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, order.RoleCustomer, cred.Role)
	assert.Equal(t, "cust-42", cred.OwnerID)
	assert.Equal(t, token, cred.Token)
}

func TestJWTProvider_Rejections(t *testing.T) {
	t.Run("expired", func(t *testing.T) {
		token := signToken(t, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
			Role:    "customer",
			OwnerID: "cust-42",
		})
		_, err := NewJWTProvider(token, testSecret).Credential(context.Background())
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, Claims{Role: "customer", OwnerID: "cust-42"})
		_, err := NewJWTProvider(token, []byte("other-secret")).Credential(context.Background())
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := NewJWTProvider("not.a.jwt", testSecret).Credential(context.Background())
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing role", func(t *testing.T) {
		token := signToken(t, Claims{OwnerID: "cust-42"})
		_, err := NewJWTProvider(token, testSecret).Credential(context.Background())
		assert.ErrorIs(t, err, ErrMissingRole)
	})

	t.Run("missing owner", func(t *testing.T) {
		token := signToken(t, Claims{Role: "restaurant"})
		_, err := NewJWTProvider(token, testSecret).Credential(context.Background())
		assert.ErrorIs(t, err, ErrMissingOwner)
	})
}
