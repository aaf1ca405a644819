package relay

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig gates who may publish location updates. When no public key is
// configured the gate is disabled and every connection may publish, matching
// the open relay the dashboards were built against. Room subscription is
// never gated: consumers only ever observe positions that were published to
// them anyway.
type AuthConfig struct {
	// PublisherJWTPublicKey is an RSA public key in PEM format. Empty
	// disables the publisher gate.
	PublisherJWTPublicKey string
}

// Enabled reports whether the publisher gate is active
func (c AuthConfig) Enabled() bool {
	return c.PublisherJWTPublicKey != ""
}

// AuthorizePublisher decides whether the connection behind r may emit
// location updates. The token is taken from the Authorization header or,
// for browser websocket clients that cannot set headers, the token query
// parameter.
func AuthorizePublisher(r *http.Request, cfg AuthConfig) (bool, error) {
	if !cfg.Enabled() {
		return true, nil
	}

	tokenString := bearerToken(r)
	if tokenString == "" {
		return false, errors.New("missing publisher token")
	}

	if _, err := validateJWT(tokenString, cfg.PublisherJWTPublicKey); err != nil {
		return false, err
	}
	return true, nil
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}

// validateJWT validates a JWT token with RSA signature and returns claims
func validateJWT(tokenString string, publicKeyPEM string) (*jwt.RegisteredClaims, error) {
	publicKey, err := parseRSAPublicKey(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	now := time.Now()
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(now) {
		return nil, errors.New("token has expired")
	}
	if claims.NotBefore != nil && claims.NotBefore.After(now) {
		return nil, errors.New("token not yet valid")
	}

	return claims, nil
}

// parseRSAPublicKey parses an RSA public key from PEM format
func parseRSAPublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not an RSA key")
	}
	return rsaKey, nil
}
