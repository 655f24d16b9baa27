package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexisync/lexisync/internal/models"
)

func generateECKey(t *testing.T) (*ecdsa.PrivateKey, []byte) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return priv, pemBytes
}

func signAssertion(t *testing.T, priv *ecdsa.PrivateKey, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signed, err := token.SignedString(priv)
	require.NoError(t, err)
	return signed
}

func validClaims(serverID, accountID uuid.UUID, purpose string) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{serverID.String()},
			Issuer:    accountID.String(),
			Subject:   purpose,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Name: "test device",
	}
}

func TestVerifier_Verify_ValidRegistration(t *testing.T) {
	serverID := uuid.New()
	accountID := uuid.New()
	priv, pub := generateECKey(t)
	verifier := NewVerifier(serverID, 5*time.Second)

	proof := signAssertion(t, priv, validClaims(serverID, accountID, PurposeRegister))

	claims, err := verifier.Verify(proof, PurposeRegister, pub, models.KeyTypeECPEM)
	require.NoError(t, err)

	id, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, accountID, id)
	assert.Equal(t, "test device", claims.Name)
}

func TestVerifier_Verify_DeleteAfterClaim(t *testing.T) {
	serverID := uuid.New()
	priv, pub := generateECKey(t)
	verifier := NewVerifier(serverID, 5*time.Second)

	deleteAfter := time.Now().Add(365 * 24 * time.Hour).Unix()
	c := validClaims(serverID, uuid.New(), PurposeRegister)
	c.DeleteAfter = &deleteAfter
	proof := signAssertion(t, priv, c)

	claims, err := verifier.Verify(proof, PurposeRegister, pub, models.KeyTypeECPEM)
	require.NoError(t, err)
	require.NotNil(t, claims.DeleteAfter)
	assert.Equal(t, deleteAfter, *claims.DeleteAfter)
}

func TestVerifier_Verify_WrongKey(t *testing.T) {
	serverID := uuid.New()
	priv, _ := generateECKey(t)
	_, otherPub := generateECKey(t)
	verifier := NewVerifier(serverID, 5*time.Second)

	proof := signAssertion(t, priv, validClaims(serverID, uuid.New(), PurposeLogin))

	_, err := verifier.Verify(proof, PurposeLogin, otherPub, models.KeyTypeECPEM)
	assert.ErrorIs(t, err, ErrInvalidAssertion)
}

func TestVerifier_Verify_GarbageKeyMaterial(t *testing.T) {
	serverID := uuid.New()
	priv, _ := generateECKey(t)
	verifier := NewVerifier(serverID, 5*time.Second)

	proof := signAssertion(t, priv, validClaims(serverID, uuid.New(), PurposeLogin))

	_, err := verifier.Verify(proof, PurposeLogin, []byte("not a pem block"), models.KeyTypeECPEM)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestVerifier_Verify_UnsupportedKeyType(t *testing.T) {
	verifier := NewVerifier(uuid.New(), 5*time.Second)

	_, err := verifier.Verify("whatever", PurposeLogin, []byte("key"), models.KeyType("DSA_PEM"))
	assert.ErrorIs(t, err, ErrUnsupportedKeyType)
}

func TestVerifier_Verify_AudienceMismatch(t *testing.T) {
	serverID := uuid.New()
	priv, pub := generateECKey(t)
	verifier := NewVerifier(serverID, 5*time.Second)

	// Signed for a different server entirely.
	proof := signAssertion(t, priv, validClaims(uuid.New(), uuid.New(), PurposeLogin))

	_, err := verifier.Verify(proof, PurposeLogin, pub, models.KeyTypeECPEM)
	assert.ErrorIs(t, err, ErrAudienceMismatch)
}

func TestVerifier_Verify_Expired(t *testing.T) {
	serverID := uuid.New()
	priv, pub := generateECKey(t)
	verifier := NewVerifier(serverID, time.Second)

	c := validClaims(serverID, uuid.New(), PurposeLogin)
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	proof := signAssertion(t, priv, c)

	_, err := verifier.Verify(proof, PurposeLogin, pub, models.KeyTypeECPEM)
	assert.ErrorIs(t, err, ErrAssertionExpired)
}

func TestVerifier_Verify_ExpiredBeatsBadSignature(t *testing.T) {
	serverID := uuid.New()
	priv, _ := generateECKey(t)
	_, otherPub := generateECKey(t)
	verifier := NewVerifier(serverID, time.Second)

	// Expiry must be reported even when the signature would not verify.
	c := validClaims(serverID, uuid.New(), PurposeLogin)
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	proof := signAssertion(t, priv, c)

	_, err := verifier.Verify(proof, PurposeLogin, otherPub, models.KeyTypeECPEM)
	assert.ErrorIs(t, err, ErrAssertionExpired)
}

func TestVerifier_Verify_MissingExpiry(t *testing.T) {
	serverID := uuid.New()
	priv, pub := generateECKey(t)
	verifier := NewVerifier(serverID, time.Second)

	c := validClaims(serverID, uuid.New(), PurposeLogin)
	c.ExpiresAt = nil
	proof := signAssertion(t, priv, c)

	_, err := verifier.Verify(proof, PurposeLogin, pub, models.KeyTypeECPEM)
	assert.ErrorIs(t, err, ErrAssertionExpired)
}

func TestVerifier_Verify_NotYetValid(t *testing.T) {
	serverID := uuid.New()
	priv, pub := generateECKey(t)
	verifier := NewVerifier(serverID, time.Second)

	c := validClaims(serverID, uuid.New(), PurposeLogin)
	c.NotBefore = jwt.NewNumericDate(time.Now().Add(time.Hour))
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(2 * time.Hour))
	proof := signAssertion(t, priv, c)

	_, err := verifier.Verify(proof, PurposeLogin, pub, models.KeyTypeECPEM)
	assert.ErrorIs(t, err, ErrAssertionNotYetValid)
}

func TestVerifier_Verify_ExpiryWithinLeeway(t *testing.T) {
	serverID := uuid.New()
	priv, pub := generateECKey(t)
	verifier := NewVerifier(serverID, 30*time.Second)

	c := validClaims(serverID, uuid.New(), PurposeLogin)
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-5 * time.Second))
	proof := signAssertion(t, priv, c)

	_, err := verifier.Verify(proof, PurposeLogin, pub, models.KeyTypeECPEM)
	assert.NoError(t, err)
}

func TestVerifier_Verify_PurposeMismatch(t *testing.T) {
	serverID := uuid.New()
	priv, pub := generateECKey(t)
	verifier := NewVerifier(serverID, 5*time.Second)

	// A registration proof must never pass as a login proof.
	proof := signAssertion(t, priv, validClaims(serverID, uuid.New(), PurposeRegister))

	_, err := verifier.Verify(proof, PurposeLogin, pub, models.KeyTypeECPEM)
	assert.ErrorIs(t, err, ErrPurposeMismatch)
}

func TestVerifier_Verify_BadIssuer(t *testing.T) {
	serverID := uuid.New()
	priv, pub := generateECKey(t)
	verifier := NewVerifier(serverID, 5*time.Second)

	c := validClaims(serverID, uuid.New(), PurposeLogin)
	c.Issuer = "not-a-uuid"
	proof := signAssertion(t, priv, c)

	_, err := verifier.Verify(proof, PurposeLogin, pub, models.KeyTypeECPEM)
	assert.ErrorIs(t, err, ErrInvalidAssertion)
}

func TestVerifier_Verify_MangledToken(t *testing.T) {
	_, pub := generateECKey(t)
	verifier := NewVerifier(uuid.New(), 5*time.Second)

	_, err := verifier.Verify("header.payload.signature", PurposeLogin, pub, models.KeyTypeECPEM)
	assert.ErrorIs(t, err, ErrInvalidAssertion)
}
