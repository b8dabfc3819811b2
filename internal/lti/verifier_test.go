package lti

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
)

// jwksServer serves the public halves of the keys it currently holds and can
// rotate to a new key mid-test.
type jwksServer struct {
	*httptest.Server

	mu   sync.Mutex
	keys map[string]*rsa.PublicKey
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()

	s := &jwksServer{keys: make(map[string]*rsa.PublicKey)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		type jwk struct {
			Kty string `json:"kty"`
			Alg string `json:"alg"`
			Use string `json:"use"`
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		}

		var doc struct {
			Keys []jwk `json:"keys"`
		}

		for kid, pub := range s.keys {
			doc.Keys = append(doc.Keys, jwk{
				Kty: "RSA",
				Alg: "RS256",
				Use: "sig",
				Kid: kid,
				N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(s.Close)

	return s
}

func (s *jwksServer) addKey(t *testing.T, kid string) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	s.mu.Lock()
	s.keys[kid] = &key.PublicKey
	s.mu.Unlock()

	return key
}

func mintToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwtv5.MapClaims) string {
	t.Helper()

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	raw, err := token.SignedString(key)
	require.NoError(t, err)

	return raw
}

func verifierTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Registration{}))

	return db
}

const (
	testIssuer   = "https://lms.example.org"
	testClientID = "client-abc"
)

func launchClaims(nonce string) jwtv5.MapClaims {
	now := time.Now()

	return jwtv5.MapClaims{
		"iss":   testIssuer,
		"aud":   testClientID,
		"sub":   "sub-1",
		"iat":   now.Unix(),
		"exp":   now.Add(5 * time.Minute).Unix(),
		"nonce": nonce,
		ClaimMessageType:  MessageTypeResourceLink,
		ClaimVersion:      "1.3.0",
		ClaimDeploymentID: "dep-1",
		ClaimRoles:        []string{"https://purl.imsglobal.org/vocab/lis/v2/membership#Learner"},
		ClaimCustom:       map[string]string{"id": "7"},
	}
}

func setupVerifier(t *testing.T) (*Verifier, *jwksServer, *rsa.PrivateKey, *gorm.DB) {
	t.Helper()

	jwks := newJWKSServer(t)
	key := jwks.addKey(t, "kid-1")

	db := verifierTestDB(t)
	require.NoError(t, db.Create(&models.Registration{
		Name:           "Test LMS",
		Issuer:         testIssuer,
		ClientID:       testClientID,
		AuthRequestURL: testIssuer + "/auth",
		JWKSURL:        jwks.URL,
	}).Error)

	return NewVerifier(db, NewNonceStore()), jwks, key, db
}

func TestVerifyValidLaunch(t *testing.T) {
	v, _, key, _ := setupVerifier(t)

	raw := mintToken(t, key, "kid-1", launchClaims("n-1"))

	claims, reg, err := v.Verify(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, testIssuer, claims.Issuer)
	assert.Equal(t, "sub-1", claims.Subject)
	assert.Equal(t, testClientID, claims.ClientID)
	assert.Equal(t, "dep-1", claims.DeploymentID)
	assert.Equal(t, "7", claims.CustomParam(CustomIDParam))
	assert.Equal(t, testClientID, reg.ClientID)
}

func TestVerifyUnknownIssuer(t *testing.T) {
	v, _, key, _ := setupVerifier(t)

	claims := launchClaims("n-1")
	claims["iss"] = "https://other.example.org"
	raw := mintToken(t, key, "kid-1", claims)

	_, _, err := v.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrUnknownIssuer)
}

func TestVerifyAudienceMismatch(t *testing.T) {
	v, _, key, _ := setupVerifier(t)

	claims := launchClaims("n-1")
	claims["aud"] = "some-other-client"
	raw := mintToken(t, key, "kid-1", claims)

	_, _, err := v.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrAudienceMismatch)
}

func TestVerifyBadSignature(t *testing.T) {
	v, _, _, _ := setupVerifier(t)

	// signed with a key the JWKS never served
	rogue, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	raw := mintToken(t, rogue, "kid-1", launchClaims("n-1"))

	_, _, err = v.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyExpiredToken(t *testing.T) {
	v, _, key, _ := setupVerifier(t)

	claims := launchClaims("n-1")
	claims["iat"] = time.Now().Add(-time.Hour).Unix()
	claims["exp"] = time.Now().Add(-30 * time.Minute).Unix()
	raw := mintToken(t, key, "kid-1", claims)

	_, _, err := v.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyFutureIssuedAt(t *testing.T) {
	v, _, key, _ := setupVerifier(t)

	claims := launchClaims("n-1")
	claims["iat"] = time.Now().Add(time.Hour).Unix()
	claims["exp"] = time.Now().Add(2 * time.Hour).Unix()
	raw := mintToken(t, key, "kid-1", claims)

	_, _, err := v.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyNonceReplay(t *testing.T) {
	v, _, key, _ := setupVerifier(t)

	raw := mintToken(t, key, "kid-1", launchClaims("n-replay"))

	_, _, err := v.Verify(context.Background(), raw)
	require.NoError(t, err)

	// same nonce, fresh token: still a replay
	raw2 := mintToken(t, key, "kid-1", launchClaims("n-replay"))
	_, _, err = v.Verify(context.Background(), raw2)
	assert.ErrorIs(t, err, ErrNonceReplay)
}

func TestVerifyKeyRotation(t *testing.T) {
	v, jwks, key, _ := setupVerifier(t)

	raw := mintToken(t, key, "kid-1", launchClaims("n-1"))
	_, _, err := v.Verify(context.Background(), raw)
	require.NoError(t, err)

	// the platform rotates to a new key; the cached keyset refetches on the
	// unknown kid
	key2 := jwks.addKey(t, "kid-2")
	raw2 := mintToken(t, key2, "kid-2", launchClaims("n-2"))

	_, _, err = v.Verify(context.Background(), raw2)
	assert.NoError(t, err)
}

func TestVerifyMalformedToken(t *testing.T) {
	v, _, _, _ := setupVerifier(t)

	_, _, err := v.Verify(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
