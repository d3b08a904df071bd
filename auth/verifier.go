//go:generate go run go.uber.org/mock/mockgen -source=verifier.go -destination=../mocks/mock_verifier.go -package=mocks
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "market-chat/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier resolves a bearer token into an opaque user id.
// The gateway treats the returned id as a trusted string afterwards.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

type Config struct {
	// Secret enables local HS256 verification when set.
	Secret []byte
	// PublicKeyPEM enables local RS256 verification when set and no secret
	// is configured.
	PublicKeyPEM []byte
	// ServiceOrigin, when set, must match the token's issuer claim.
	ServiceOrigin string
	// IdentityURL is the fallback identity endpoint, called with the token
	// as bearer credential when no local key material is configured.
	IdentityURL string
}

type TokenVerifier struct {
	log       *slog.Logger
	config    Config
	publicKey *rsa.PublicKey
	client    *http.Client
}

func NewTokenVerifier(log *slog.Logger, config Config) (*TokenVerifier, error) {
	verifier := &TokenVerifier{
		log:    log,
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	if len(config.Secret) == 0 && len(config.PublicKeyPEM) > 0 {
		key, err := jwt.ParseRSAPublicKeyFromPEM(config.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("invalid public key: %w", err)
		}
		verifier.publicKey = key
	}
	return verifier, nil
}

func (v *TokenVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperrors.ErrMissingToken
	}
	if len(v.config.Secret) > 0 || v.publicKey != nil {
		return v.verifyLocal(token)
	}
	if v.config.IdentityURL != "" {
		return v.verifyRemote(ctx, token)
	}
	return "", apperrors.ErrUnauthenticated
}

// verifyLocal checks the signature with whichever key type is configured:
// the shared secret selects HMAC, the public key selects RSA.
func (v *TokenVerifier) verifyLocal(token string) (string, error) {
	var keyFunc jwt.Keyfunc
	var methods []string
	if len(v.config.Secret) > 0 {
		methods = []string{jwt.SigningMethodHS256.Alg()}
		keyFunc = func(*jwt.Token) (any, error) { return v.config.Secret, nil }
	} else {
		methods = []string{jwt.SigningMethodRS256.Alg()}
		keyFunc = func(*jwt.Token) (any, error) { return v.publicKey, nil }
	}

	options := []jwt.ParserOption{jwt.WithValidMethods(methods)}
	if v.config.ServiceOrigin != "" {
		options = append(options, jwt.WithIssuer(v.config.ServiceOrigin))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, keyFunc, options...)
	if err != nil {
		v.log.Debug("Token verification failed", "error", err)
		return "", fmt.Errorf("%w: %v", apperrors.ErrUnauthenticated, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", apperrors.ErrUnauthenticated
	}
	return claims.Subject, nil
}

// verifyRemote asks the identity endpoint who the token belongs to.
// Any transport failure, non-2xx status or missing id means unauthenticated.
func (v *TokenVerifier) verifyRemote(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.config.IdentityURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUnauthenticated, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		v.log.Debug("Identity endpoint unreachable", "error", err)
		return "", fmt.Errorf("%w: %v", apperrors.ErrUnauthenticated, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: identity endpoint returned %d", apperrors.ErrUnauthenticated, resp.StatusCode)
	}

	var identity struct {
		ID string `json:"id"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUnauthenticated, err)
	}
	if identity.ID == "" {
		return "", apperrors.ErrUnauthenticated
	}
	return identity.ID, nil
}
