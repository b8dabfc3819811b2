package lti

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // legacy username derivation, not used for integrity
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// ValidateMigration checks the lti1p1 migration claim of a launch against the
// secrets registered for its consumer key and returns the legacy user id the
// launch migrates from.
//
// A claim without a consumer key means the platform does not request
// migration; that is not an error and the caller falls through to the
// new-account path. A consumer key without a signature is rejected. A
// consumer may have rotated through several secrets, so the signature is
// accepted when any candidate secret reproduces it. When the claim omits
// user_id the legacy id equals the current launch subject unchanged.
func ValidateMigration(claim *MigrationClaim, launchSubject string, secrets map[string][]string) (string, error) {
	if claim == nil || claim.ConsumerKey == "" {
		return "", nil
	}

	if claim.Signature == "" {
		return "", ErrMissingSignature
	}

	candidates, ok := secrets[claim.ConsumerKey]
	if !ok || len(candidates) == 0 {
		return "", ErrMissingConsumerKey
	}

	legacyUserID := claim.UserID
	if legacyUserID == "" {
		legacyUserID = launchSubject
	}

	for _, secret := range candidates {
		expected := migrationSignature(claim, legacyUserID, secret)

		// MAC check, constant time
		if hmac.Equal([]byte(expected), []byte(claim.Signature)) {
			return legacyUserID, nil
		}
	}

	return "", fmt.Errorf("%w: migration claim for consumer key %s", ErrInvalidSignature, claim.ConsumerKey)
}

// migrationSignature recomputes the expected oauth_consumer_key_sign value
// for one candidate secret.
func migrationSignature(claim *MigrationClaim, legacyUserID, secret string) string {
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

// LegacyUsername derives the deterministic username an LTI 1.1 consumer
// created for a legacy user.
func LegacyUsername(consumerKey, legacyUserID string) string {
	return sha1Hex(consumerKey + "::" + consumerKey + ":" + legacyUserID)
}

// ProvisionedUsername derives the deterministic username for an account
// auto-provisioned from an LTI 1.3 identity.
func ProvisionedUsername(issuer, subject string) string {
	return "lti13_" + sha1Hex(issuer+"_"+subject)
}

// PlaceholderEmail derives the deterministic placeholder address used when
// the platform omits the email claim, so provisioned accounts never require
// forced profile completion.
func PlaceholderEmail(issuer, subject string) string {
	return sha1Hex(issuer+"_"+subject) + "@example.com"
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec // deterministic identifier derivation
	return hex.EncodeToString(sum[:])
}
