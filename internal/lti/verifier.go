package lti

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/registration"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
)

// iatSkew is the accepted clock skew for the issued-at claim.
const iatSkew = 5 * time.Minute

// jwksTimeout bounds the JWKS dependency call.
const jwksTimeout = 10 * time.Second

// Verifier validates launch id_tokens against the keysets of registered
// platforms. Keysets are fetched per registration and cached; an unknown kid
// triggers one forced refetch before the token is rejected, which tolerates
// platform key rotation.
type Verifier struct {
	db     *gorm.DB
	nonces *NonceStore
	client *http.Client

	mu      sync.Mutex
	keySets map[uint64]oidc.KeySet
}

// NewVerifier creates a verifier reading registrations from db and recording
// consumed nonces in nonces.
func NewVerifier(db *gorm.DB, nonces *NonceStore) *Verifier {
	return &Verifier{
		db:      db,
		nonces:  nonces,
		client:  &http.Client{Timeout: jwksTimeout},
		keySets: make(map[uint64]oidc.KeySet),
	}
}

// keySet returns the cached remote keyset for a registration.
func (v *Verifier) keySet(ctx context.Context, reg *models.Registration) oidc.KeySet {
	v.mu.Lock()
	defer v.mu.Unlock()

	if ks, ok := v.keySets[reg.ID]; ok {
		return ks
	}

	// NewRemoteKeySet caches the JWKS document and refetches it once when a
	// signature presents an unknown kid.
	ks := oidc.NewRemoteKeySet(oidc.ClientContext(context.WithoutCancel(ctx), v.client), reg.JWKSURL)
	v.keySets[reg.ID] = ks

	return ks
}

// peekIssuerAudience decodes the unverified token envelope to find out which
// registration to validate against. Nothing from this peek is trusted beyond
// the registration lookup; all claims are re-read from the verified token.
func peekIssuerAudience(rawIDToken string) (iss string, aud []string, err error) {
	parser := jwtv5.NewParser()

	var claims jwtv5.MapClaims

	if _, _, err := parser.ParseUnverified(rawIDToken, &claims); err != nil {
		return "", nil, fmt.Errorf("%w: malformed token: %v", ErrInvalidSignature, err)
	}

	iss, _ = claims["iss"].(string)

	switch v := claims["aud"].(type) {
	case string:
		aud = []string{v}
	case []interface{}:
		for _, a := range v {
			if s, ok := a.(string); ok {
				aud = append(aud, s)
			}
		}
	}

	return iss, aud, nil
}

// Verify validates a launch id_token: registration lookup by issuer, audience
// match against the registered client ids, signature via the platform JWKS,
// expiry/issued-at within skew and single-use nonce consumption.
// It returns the validated claims and the registration the token matched.
func (v *Verifier) Verify(ctx context.Context, rawIDToken string) (*LaunchClaims, *models.Registration, error) {
	iss, aud, err := peekIssuerAudience(rawIDToken)
	if err != nil {
		return nil, nil, err
	}

	regs, err := registration.GetByIssuer(v.db, iss)
	if err != nil {
		if errors.Is(err, registration.ErrRegistrationNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownIssuer, iss)
		}

		return nil, nil, err
	}

	reg := matchAudience(regs, aud)
	if reg == nil {
		return nil, nil, ErrAudienceMismatch
	}

	verifier := oidc.NewVerifier(reg.Issuer, v.keySet(ctx, reg), &oidc.Config{
		ClientID: reg.ClientID,
		// expiry is checked below so it maps onto the typed error
		SkipExpiryCheck:      true,
		SupportedSigningAlgs: []string{oidc.RS256},
	})

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	now := time.Now()
	if !idToken.Expiry.IsZero() && now.After(idToken.Expiry) {
		return nil, nil, ErrExpiredToken
	}

	if !idToken.IssuedAt.IsZero() && idToken.IssuedAt.After(now.Add(iatSkew)) {
		return nil, nil, ErrExpiredToken
	}

	var claims LaunchClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	claims.Issuer = idToken.Issuer
	claims.Subject = idToken.Subject
	claims.ClientID = reg.ClientID

	// single use; consuming twice is a replay
	if claims.Nonce != "" {
		if err := v.nonces.Consume(claims.Nonce); err != nil {
			return nil, nil, err
		}
	}

	return &claims, reg, nil
}

// matchAudience picks the registration whose client id appears in the token
// audience list.
func matchAudience(regs []models.Registration, aud []string) *models.Registration {
	for i := range regs {
		for _, a := range aud {
			if regs[i].ClientID == a {
				return &regs[i]
			}
		}
	}

	return nil
}
