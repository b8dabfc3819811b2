// Package nrps implements a minimal Names and Role Provisioning Services
// client. Sync fetches the membership of a context and upserts the members
// through the same repository layer launches write to, so rosters and
// launches converge on identical records.
package nrps

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/ltiuser"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/uniuri"
)

// ScopeMembership is the LTI Advantage scope for membership reads.
const ScopeMembership = "https://purl.imsglobal.org/spec/lti-nrps/scope/contextmembership.readonly"

const (
	assertionLifetime = 5 * time.Minute
	assertionType     = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	requestTimeout    = 30 * time.Second
)

var (
	// ErrNoAccessTokenURL is returned when the registration has no access
	// token endpoint configured.
	ErrNoAccessTokenURL = errors.New("registration has no access token url")

	// ErrMembershipFetch is returned when the membership container request
	// fails with a non-2xx status.
	ErrMembershipFetch = errors.New("membership fetch failed")
)

// Member is one entry of an NRPS membership container.
type Member struct {
	UserID     string   `json:"user_id"`
	Status     string   `json:"status"`
	GivenName  string   `json:"given_name"`
	FamilyName string   `json:"family_name"`
	Email      string   `json:"email"`
	Roles      []string `json:"roles"`
}

// container is the NRPS membership response body.
type container struct {
	ID      string   `json:"id"`
	Members []Member `json:"members"`
}

// Client fetches memberships from a platform.
type Client struct {
	db         *gorm.DB
	signingKey *rsa.PrivateKey
	keyID      string
	httpClient *http.Client
}

// NewClient creates an NRPS client signing its client assertions with the
// tool key.
func NewClient(db *gorm.DB, signingKey *rsa.PrivateKey, keyID string) *Client {
	return &Client{
		db:         db,
		signingKey: signingKey,
		keyID:      keyID,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// clientAssertion mints the signed JWT the platform token endpoint expects
// instead of a client secret.
func (c *Client) clientAssertion(reg *models.Registration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": reg.ClientID,
		"sub": reg.ClientID,
		"aud": reg.AccessTokenURL,
		"iat": now.Unix(),
		"exp": now.Add(assertionLifetime).Unix(),
		"jti": uniuri.New(), // token endpoint replay id
	})
	token.Header["kid"] = c.keyID

	return token.SignedString(c.signingKey)
}

// tokenClient builds an authenticated HTTP client for one sync run. The
// assertion is minted fresh per run; runs are short enough that it never
// needs renewing mid-run.
func (c *Client) tokenClient(ctx context.Context, reg *models.Registration) (*http.Client, error) {
	if reg.AccessTokenURL == "" {
		return nil, ErrNoAccessTokenURL
	}

	assertion, err := c.clientAssertion(reg)
	if err != nil {
		return nil, fmt.Errorf("sign client assertion: %w", err)
	}

	conf := &clientcredentials.Config{
		ClientID: reg.ClientID,
		TokenURL: reg.AccessTokenURL,
		Scopes:   []string{ScopeMembership},
		EndpointParams: url.Values{
			"client_assertion_type": {assertionType},
			"client_assertion":      {assertion},
		},
	}

	// the timeout applies to both the token request and the page fetches
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	return conf.Client(ctx), nil
}

// FetchMembers retrieves the full membership behind a context memberships
// URL, following NRPS Link rel=next paging.
func (c *Client) FetchMembers(ctx context.Context, reg *models.Registration, membershipsURL string) ([]Member, error) {
	client, err := c.tokenClient(ctx, reg)
	if err != nil {
		return nil, err
	}

	var members []Member

	next := membershipsURL
	for next != "" {
		page, nextURL, err := fetchPage(ctx, client, next)
		if err != nil {
			return nil, err
		}

		members = append(members, page...)
		next = nextURL
	}

	return members, nil
}

// Sync fetches the membership of a context and upserts every active member
// for the given resource and deployment. Returns the number of records
// written.
func (c *Client) Sync(ctx context.Context, reg *models.Registration, dep *models.Deployment, resourceID uint64, membershipsURL string) (int, error) {
	members, err := c.FetchMembers(ctx, reg, membershipsURL)
	if err != nil {
		return 0, err
	}

	written := 0

	for i := range members {
		m := &members[i]
		if m.Status != "" && m.Status != "Active" {
			continue
		}

		u := &models.LTIUser{
			ResourceID:   resourceID,
			DeploymentID: dep.ID,
			SourceID:     m.UserID,
			Email:        m.Email,
			FirstName:    m.GivenName,
			LastName:     m.FamilyName,
		}
		if _, err := ltiuser.Upsert(c.db, u); err != nil {
			return written, fmt.Errorf("upsert member %q: %w", m.UserID, err)
		}

		written++
	}

	log.Info().
		Str("issuer", reg.Issuer).
		Uint64("resource", resourceID).
		Int("members", written).
		Msg("roster sync completed")

	return written, nil
}

// fetchPage requests one membership container page and returns its members
// and the next page URL, "" when this was the last page.
func fetchPage(ctx context.Context, client *http.Client, pageURL string) ([]Member, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "application/vnd.ims.lti-nrps.v2.membershipcontainer+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, "", fmt.Errorf("%w: %s returned %d", ErrMembershipFetch, pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	var page container
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", fmt.Errorf("decode membership container: %w", err)
	}

	return page.Members, nextLink(resp.Header), nil
}

// nextLink extracts the rel="next" target from a Link header of the form
// <url1>; rel="next", <url2>; rel="last".
func nextLink(h http.Header) string {
	for _, link := range h.Values("Link") {
		for _, entry := range strings.Split(link, ",") {
			var target, rel string

			for _, field := range strings.Split(entry, ";") {
				field = strings.TrimSpace(field)

				switch {
				case strings.HasPrefix(field, "<") && strings.HasSuffix(field, ">"):
					target = strings.Trim(field, "<>")
				case strings.HasPrefix(field, "rel="):
					rel = strings.Trim(strings.TrimPrefix(field, "rel="), `"`)
				}
			}

			if rel == "next" && target != "" {
				return target
			}
		}
	}

	return ""
}

// LoadPrivateKey reads the PEM-encoded RSA signing key for client
// assertions.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("signing key is not PEM encoded")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("signing key is not an RSA key")
	}

	return key, nil
}
