package identity

import (
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/binding"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/email"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/uniuri"
)

const (
	// BindingTTL is the confirmation window for a pending binding.
	BindingTTL = 30 * time.Minute

	// ConfirmPath is the confirmation endpoint the mailed link points at.
	ConfirmPath = "/lti/link/confirm"

	tokenLength = 32
)

// Linker drives the manual account-binding confirmation flow for privileged
// users who chose to link an existing account.
type Linker struct {
	db      *gorm.DB
	sender  email.Sender
	baseURL string
}

// NewLinker creates a linker. baseURL is the public URL of this tool, used to
// build confirmation links.
func NewLinker(db *gorm.DB, sender email.Sender, baseURL string) *Linker {
	return &Linker{
		db:      db,
		sender:  sender,
		baseURL: baseURL,
	}
}

// StartConfirmation creates a pending binding between the platform identity
// and the chosen account and mails the confirmation link. The pending binding
// is written first; a failed mail send is surfaced but leaves the binding in
// place so the flow can be restarted without a dangling half-state.
func (l *Linker) StartConfirmation(issuer, subject string, account *models.Account, returnURL string) error {
	token := uniuri.NewLen(tokenLength)
	expiry := time.Now().Add(BindingTTL)

	if _, err := binding.CreatePending(l.db, issuer, subject, account.ID, token, expiry, returnURL); err != nil {
		return fmt.Errorf("failed to create pending binding: %w", err)
	}

	link := l.confirmationLink(issuer, subject, account.ID, token, returnURL)

	subjectLine := "Confirm linking your account"
	text := fmt.Sprintf(
		"A launch from your learning platform asked to use this account.\n\n"+
			"Open the link below within %d minutes to confirm:\n\n%s\n\n"+
			"If you did not request this, ignore this mail.",
		int(BindingTTL.Minutes()), link,
	)
	html := fmt.Sprintf(
		`<p>A launch from your learning platform asked to use this account.</p>`+
			`<p><a href="%s">Confirm the link</a> within %d minutes.</p>`+
			`<p>If you did not request this, ignore this mail.</p>`,
		link, int(BindingTTL.Minutes()),
	)

	if err := l.sender.Send(account.Email, subjectLine, text, html); err != nil {
		log.Error().Err(err).Uint64("account_id", account.ID).Msg("confirmation mail failed, pending binding kept")
		return err
	}

	return nil
}

// Confirm finalizes a pending binding from a clicked mail link. It fails
// closed (ok == false) on any mismatch and returns the launch URL to resume
// on success.
func (l *Linker) Confirm(issuer, subject string, accountID uint64, token string) (returnURL string, ok bool, err error) {
	return binding.Confirm(l.db, issuer, subject, accountID, token)
}

// confirmationLink builds the mailed confirmation URL. The returnurl
// parameter is informational; the endpoint resumes at the URL stored on the
// pending binding row, never at a URL taken from the request.
func (l *Linker) confirmationLink(issuer, subject string, accountID uint64, token, returnURL string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("iss", issuer)
	q.Set("sub", subject)
	q.Set("userid", fmt.Sprintf("%d", accountID))
	q.Set("returnurl", returnURL)

	return l.baseURL + ConfirmPath + "?" + q.Encode()
}
