package nrps

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/deployment"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/ltiuser"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Registration{},
		&models.Deployment{},
		&models.LTIUser{},
	))

	return db
}

// platformStub fakes the token endpoint and a paged membership container.
type platformStub struct {
	*httptest.Server

	t              *testing.T
	toolKey        *rsa.PublicKey
	tokenRequests  int
	memberRequests int
}

func newPlatformStub(t *testing.T, toolKey *rsa.PublicKey) *platformStub {
	t.Helper()

	s := &platformStub{t: t, toolKey: toolKey}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", s.token)
	mux.HandleFunc("/members", s.members)
	mux.HandleFunc("/members2", s.members2)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)

	return s
}

func (s *platformStub) token(w http.ResponseWriter, r *http.Request) {
	s.tokenRequests++

	require.NoError(s.t, r.ParseForm())
	assert.Equal(s.t, "client_credentials", r.PostForm.Get("grant_type"))
	assert.Equal(s.t, assertionType, r.PostForm.Get("client_assertion_type"))

	// the assertion must verify against the tool public key
	assertion := r.PostForm.Get("client_assertion")
	require.NotEmpty(s.t, assertion)

	_, err := jwt.Parse(assertion, func(_ *jwt.Token) (interface{}, error) {
		return s.toolKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	assert.NoError(s.t, err)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": "platform-token",
		"token_type":   "bearer",
		"expires_in":   3600,
	})
}

func (s *platformStub) members(w http.ResponseWriter, r *http.Request) {
	s.memberRequests++

	assert.Equal(s.t, "Bearer platform-token", r.Header.Get("Authorization"))

	w.Header().Set("Link", `<`+s.URL+`/members2>; rel="next"`)
	w.Header().Set("Content-Type", "application/vnd.ims.lti-nrps.v2.membershipcontainer+json")
	_ = json.NewEncoder(w).Encode(container{
		ID: s.URL + "/members",
		Members: []Member{
			{UserID: "sub-1", Status: "Active", GivenName: "Ada", FamilyName: "Lovelace", Email: "ada@example.org"},
			{UserID: "sub-2", Status: "Inactive", GivenName: "Gone", FamilyName: "User"},
		},
	})
}

func (s *platformStub) members2(w http.ResponseWriter, _ *http.Request) {
	s.memberRequests++

	w.Header().Set("Content-Type", "application/vnd.ims.lti-nrps.v2.membershipcontainer+json")
	_ = json.NewEncoder(w).Encode(container{
		Members: []Member{
			{UserID: "sub-3", Status: "Active", GivenName: "Alan", FamilyName: "Turing", Email: "alan@example.org"},
		},
	})
}

func TestSync(t *testing.T) {
	db := testDB(t)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	stub := newPlatformStub(t, &key.PublicKey)

	reg := &models.Registration{
		Name:           "Test LMS",
		Issuer:         "https://lms.example.org",
		ClientID:       "client-abc",
		AuthRequestURL: "https://lms.example.org/auth",
		JWKSURL:        "https://lms.example.org/jwks",
		AccessTokenURL: stub.URL + "/token",
	}
	require.NoError(t, db.Create(reg).Error)

	dep, err := deployment.Create(db, reg.ID, "dep-1", "")
	require.NoError(t, err)

	// a launch already placed sub-1; sync must not wipe what it recorded
	linkID := uint64(42)
	_, err = ltiuser.Upsert(db, &models.LTIUser{
		ResourceID:     7,
		DeploymentID:   dep.ID,
		SourceID:       "sub-1",
		Username:       "lti13_abc",
		ResourceLinkID: &linkID,
	})
	require.NoError(t, err)

	client := NewClient(db, key, "kid-1")

	written, err := client.Sync(context.Background(), reg, dep, 7, stub.URL+"/members")
	require.NoError(t, err)

	// both pages fetched, inactive member skipped
	assert.Equal(t, 2, written)
	assert.Equal(t, 2, stub.memberRequests)

	u, err := ltiuser.Get(db, 7, dep.ID, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.FirstName)
	assert.Equal(t, "ada@example.org", u.Email)
	assert.Equal(t, "lti13_abc", u.Username)
	require.NotNil(t, u.ResourceLinkID)
	assert.Equal(t, linkID, *u.ResourceLinkID)

	u3, err := ltiuser.Get(db, 7, dep.ID, "sub-3")
	require.NoError(t, err)
	assert.Equal(t, "Turing", u3.LastName)

	_, err = ltiuser.Get(db, 7, dep.ID, "sub-2")
	assert.ErrorIs(t, err, ltiuser.ErrLTIUserNotFound)
}

func TestSyncNoAccessTokenURL(t *testing.T) {
	db := testDB(t)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	reg := &models.Registration{Issuer: "https://lms.example.org", ClientID: "client-abc"}
	dep := &models.Deployment{ID: 1}

	client := NewClient(db, key, "kid-1")

	_, err = client.Sync(context.Background(), reg, dep, 7, "https://unused.example.org")
	assert.ErrorIs(t, err, ErrNoAccessTokenURL)
}

func TestNextLink(t *testing.T) {
	h := http.Header{}
	h.Set("Link", `<https://p.example.org/members?page=2>; rel="next", <https://p.example.org/members?page=9>; rel="last"`)
	assert.Equal(t, "https://p.example.org/members?page=2", nextLink(h))

	h = http.Header{}
	h.Set("Link", `<https://p.example.org/members?page=9>; rel="last"`)
	assert.Empty(t, nextLink(h))

	assert.Empty(t, nextLink(http.Header{}))
}
