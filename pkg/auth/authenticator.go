package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/yukinko0825/recipe-site/pkg/identity"
	"github.com/yukinko0825/recipe-site/pkg/recipe"
)

// OperatorID is the subject of every operator session. The site has a
// single shared operator identity.
const OperatorID = "operator"

// DefaultSessionTTL is used when no session lifetime is configured.
const DefaultSessionTTL = 12 * time.Hour

var (
	// ErrInvalidCredentials is returned for a wrong passphrase.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid passphrase", recipe.ErrUnauthorized)
	// ErrLoginDisabled is returned when no passphrase hash is configured.
	ErrLoginDisabled = fmt.Errorf("%w: operator login is not configured", recipe.ErrUnauthorized)
)

// OperatorCapabilities are granted to a signed-in operator.
func OperatorCapabilities() []string {
	return []string{recipe.CapabilityWrite, recipe.CapabilityDelete}
}

// LocalOperator is the principal used by the command line, which runs with
// the operator's own database credentials.
func LocalOperator() Principal {
	return &BasePrincipal{ID: "local-operator", Capabilities: OperatorCapabilities()}
}

// SessionClaims are the JWT claims of an operator session.
type SessionClaims struct {
	jwt.RegisteredClaims
	Capabilities []string `json:"caps"`
}

// Session is an issued operator token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticator verifies the operator passphrase against a bcrypt hash and
// issues session tokens.
type Authenticator struct {
	hash []byte
	keys identity.KeySet
	ttl  time.Duration
	now  func() time.Time
}

// NewAuthenticator creates an authenticator. An empty hash disables login.
func NewAuthenticator(passphraseHash string, keys identity.KeySet, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Authenticator{hash: []byte(passphraseHash), keys: keys, ttl: ttl, now: time.Now}
}

// Login checks passphrase and returns a signed session.
func (a *Authenticator) Login(ctx context.Context, passphrase string) (*Session, error) {
	if len(a.hash) == 0 {
		return nil, ErrLoginDisabled
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(passphrase)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("passphrase check failed: %w", err)
	}

	now := a.now()
	expires := now.Add(a.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   OperatorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Capabilities: OperatorCapabilities(),
	}
	token, err := a.keys.Sign(ctx, claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expires}, nil
}

// HashPassphrase produces the bcrypt hash to configure as
// OPERATOR_PASSPHRASE_HASH.
func HashPassphrase(passphrase string) (string, error) {
	if passphrase == "" {
		return "", errors.New("passphrase must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
