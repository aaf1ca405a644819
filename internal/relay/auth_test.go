package relay_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairtrace/trace-core/internal/relay"
)

// testKeyPair generates an RSA key pair and returns the private key together
// with the PEM-encoded public key
func testKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	})
	return key, string(pemBytes)
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.RegisteredClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestAuthorizePublisher_DisabledGateAllowsAll(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)

	ok, err := relay.AuthorizePublisher(r, relay.AuthConfig{})
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthorizePublisher_ValidBearerToken(t *testing.T) {
	key, pubPEM := testKeyPair(t)
	token := signToken(t, key, jwt.RegisteredClaims{
		Subject:   "device-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	ok, err := relay.AuthorizePublisher(r, relay.AuthConfig{PublisherJWTPublicKey: pubPEM})
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthorizePublisher_TokenFromQueryParameter(t *testing.T) {
	key, pubPEM := testKeyPair(t)
	token := signToken(t, key, jwt.RegisteredClaims{
		Subject:   "device-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	// Browser websocket clients cannot set headers
	r := httptest.NewRequest("GET", "/ws?token="+token, nil)

	ok, err := relay.AuthorizePublisher(r, relay.AuthConfig{PublisherJWTPublicKey: pubPEM})
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthorizePublisher_MissingToken(t *testing.T) {
	_, pubPEM := testKeyPair(t)

	r := httptest.NewRequest("GET", "/ws", nil)

	ok, err := relay.AuthorizePublisher(r, relay.AuthConfig{PublisherJWTPublicKey: pubPEM})
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestAuthorizePublisher_ExpiredToken(t *testing.T) {
	key, pubPEM := testKeyPair(t)
	token := signToken(t, key, jwt.RegisteredClaims{
		Subject:   "device-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	ok, err := relay.AuthorizePublisher(r, relay.AuthConfig{PublisherJWTPublicKey: pubPEM})
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestAuthorizePublisher_WrongKey(t *testing.T) {
	key, _ := testKeyPair(t)
	_, otherPEM := testKeyPair(t)

	token := signToken(t, key, jwt.RegisteredClaims{
		Subject:   "device-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	ok, err := relay.AuthorizePublisher(r, relay.AuthConfig{PublisherJWTPublicKey: otherPEM})
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestAuthorizePublisher_GarbageToken(t *testing.T) {
	_, pubPEM := testKeyPair(t)

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer not.a.jwt")

	ok, err := relay.AuthorizePublisher(r, relay.AuthConfig{PublisherJWTPublicKey: pubPEM})
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestAuthConfig_Enabled(t *testing.T) {
	assert.False(t, relay.AuthConfig{}.Enabled())
	assert.True(t, relay.AuthConfig{PublisherJWTPublicKey: "key"}.Enabled())
}
