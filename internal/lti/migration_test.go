package lti

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signMigration reproduces the signature a migrating consumer computes.
func signMigration(claim *MigrationClaim, legacyUserID, secret string) string {
	base := strings.Join([]string{
		claim.ConsumerKey,
		legacyUserID,
		claim.ContextID,
		claim.ToolConsumerInstanceGUID,
		claim.ResourceLinkID,
	}, "&")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func testClaim() *MigrationClaim {
	return &MigrationClaim{
		UserID:                   "legacy-42",
		ConsumerKey:              "CONSUMER_1",
		ContextID:                "course-7",
		ToolConsumerInstanceGUID: "moodle.example.org",
		ResourceLinkID:           "link-3",
	}
}

func TestValidateMigration(t *testing.T) {
	secrets := map[string][]string{
		"CONSUMER_1": {"current-secret", "previous-secret"},
	}

	t.Run("valid under current secret", func(t *testing.T) {
		claim := testClaim()
		claim.Signature = signMigration(claim, claim.UserID, "current-secret")

		got, err := ValidateMigration(claim, "sub-1", secrets)
		require.NoError(t, err)
		assert.Equal(t, "legacy-42", got)
	})

	t.Run("valid under rotated secret", func(t *testing.T) {
		claim := testClaim()
		claim.Signature = signMigration(claim, claim.UserID, "previous-secret")

		got, err := ValidateMigration(claim, "sub-1", secrets)
		require.NoError(t, err)
		assert.Equal(t, "legacy-42", got)
	})

	t.Run("missing user id falls back to subject", func(t *testing.T) {
		claim := testClaim()
		claim.UserID = ""
		claim.Signature = signMigration(claim, "sub-1", "current-secret")

		got, err := ValidateMigration(claim, "sub-1", secrets)
		require.NoError(t, err)
		assert.Equal(t, "sub-1", got)
	})

	t.Run("tampered signature", func(t *testing.T) {
		claim := testClaim()
		sig := []byte(signMigration(claim, claim.UserID, "current-secret"))
		sig[0] ^= 0x01
		claim.Signature = string(sig)

		_, err := ValidateMigration(claim, "sub-1", secrets)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("missing signature", func(t *testing.T) {
		claim := testClaim()

		_, err := ValidateMigration(claim, "sub-1", secrets)
		assert.ErrorIs(t, err, ErrMissingSignature)
	})

	t.Run("unknown consumer key", func(t *testing.T) {
		claim := testClaim()
		claim.ConsumerKey = "CONSUMER_UNKNOWN"
		claim.Signature = signMigration(claim, claim.UserID, "current-secret")

		_, err := ValidateMigration(claim, "sub-1", secrets)
		assert.ErrorIs(t, err, ErrMissingConsumerKey)
	})

	t.Run("no claim means no migration", func(t *testing.T) {
		got, err := ValidateMigration(nil, "sub-1", secrets)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("claim without consumer key means no migration", func(t *testing.T) {
		claim := testClaim()
		claim.ConsumerKey = ""

		got, err := ValidateMigration(claim, "sub-1", secrets)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestUsernameDerivations(t *testing.T) {
	// deterministic per identity and stable across calls
	assert.Equal(t, LegacyUsername("CONSUMER_1", "legacy-42"), LegacyUsername("CONSUMER_1", "legacy-42"))
	assert.NotEqual(t, LegacyUsername("CONSUMER_1", "legacy-42"), LegacyUsername("CONSUMER_2", "legacy-42"))

	u := ProvisionedUsername("https://lms.example.org", "sub-1")
	assert.True(t, strings.HasPrefix(u, "lti13_"))
	assert.Equal(t, u, ProvisionedUsername("https://lms.example.org", "sub-1"))
	assert.NotEqual(t, u, ProvisionedUsername("https://lms.example.org", "sub-2"))

	mail := PlaceholderEmail("https://lms.example.org", "sub-1")
	assert.True(t, strings.HasSuffix(mail, "@example.com"))
}
