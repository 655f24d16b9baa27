// Package auth validates proof-of-possession assertions: short-lived,
// self-signed JWTs proving control of a private key without revealing it.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lexisync/lexisync/internal/models"
)

var (
	ErrUnsupportedKeyType   = errors.New("unsupported key type")
	ErrInvalidKey           = errors.New("invalid key material")
	ErrInvalidAssertion     = errors.New("invalid assertion")
	ErrAudienceMismatch     = errors.New("assertion audience mismatch")
	ErrAssertionExpired     = errors.New("assertion expired")
	ErrAssertionNotYetValid = errors.New("assertion not yet valid")
	ErrPurposeMismatch      = errors.New("assertion purpose mismatch")
)

// Assertion purposes. Register verifies against the caller-supplied key,
// login only ever against the key already on file; the two must stay
// separate code paths.
const (
	PurposeRegister = "register"
	PurposeLogin    = "login"
)

// Claims is the assertion claim set. The issuer is the account identifier
// the caller asserts control over; the subject carries the purpose.
type Claims struct {
	jwt.RegisteredClaims
	Name        string `json:"name,omitempty"`
	DeleteAfter *int64 `json:"delete_after,omitempty"`
}

// AccountID returns the issuer claim parsed as an account identifier.
func (c *Claims) AccountID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Issuer)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad issuer", ErrInvalidAssertion)
	}
	return id, nil
}

type Verifier struct {
	serverID uuid.UUID
	leeway   time.Duration
}

func NewVerifier(serverID uuid.UUID, leeway time.Duration) *Verifier {
	return &Verifier{serverID: serverID, leeway: leeway}
}

// Verify validates the claim set for the expected purpose and checks the
// assertion signature against the given public key. Claim checks run first
// in a fixed order (audience, time window, purpose, issuer) so an expired or
// misdirected assertion is reported as such even when the signature is
// garbage. Pure validation, no side effects; the validated claims are
// returned on success.
func (v *Verifier) Verify(proof string, purpose string, key []byte, keyType models.KeyType) (*Claims, error) {
	var (
		pub     any
		methods []string
		err     error
	)
	switch keyType {
	case models.KeyTypeECPEM:
		methods = []string{"ES256", "ES384"}
		pub, err = jwt.ParseECPublicKeyFromPEM(key)
	case models.KeyTypeRSAPEM:
		methods = []string{"RS256", "RS384", "RS512"}
		pub, err = jwt.ParseRSAPublicKeyFromPEM(key)
	default:
		return nil, ErrUnsupportedKeyType
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(methods),
		jwt.WithoutClaimsValidation(),
	)

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(proof, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	if !audienceContains(claims.Audience, v.serverID.String()) {
		return nil, ErrAudienceMismatch
	}

	now := time.Now()
	if claims.ExpiresAt == nil || now.After(claims.ExpiresAt.Time.Add(v.leeway)) {
		return nil, ErrAssertionExpired
	}
	if claims.NotBefore != nil && now.Add(v.leeway).Before(claims.NotBefore.Time) {
		return nil, ErrAssertionNotYetValid
	}

	if claims.Subject != purpose {
		return nil, ErrPurposeMismatch
	}

	if _, err := claims.AccountID(); err != nil {
		return nil, err
	}

	_, err = parser.ParseWithClaims(proof, &Claims{},
		func(t *jwt.Token) (any, error) { return pub, nil })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	return claims, nil
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
