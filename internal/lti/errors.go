package lti

import "errors"

var (
	// ErrUnknownIssuer is returned when no registration exists for the
	// issuer a login or launch claims to come from.
	ErrUnknownIssuer = errors.New("unknown platform issuer")

	// ErrInvalidRegistration is returned when issuer and client id do not
	// resolve to a registration.
	ErrInvalidRegistration = errors.New("invalid registration")

	// ErrInvalidDeployment is returned when the deployment_id claim does not
	// resolve to a deployment of the registration.
	ErrInvalidDeployment = errors.New("invalid deployment")

	// ErrInvalidSignature is returned when an id_token signature cannot be
	// verified against the platform keyset, or a migration claim signature
	// does not match any registered consumer secret.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrExpiredToken is returned when an id_token is outside its validity
	// window (expired, or issued in the future beyond the accepted skew).
	ErrExpiredToken = errors.New("token expired")

	// ErrNonceReplay is returned when a nonce is presented a second time.
	ErrNonceReplay = errors.New("nonce already consumed")

	// ErrAudienceMismatch is returned when none of the token audiences match
	// a registered client id for the issuer.
	ErrAudienceMismatch = errors.New("audience does not match client id")

	// ErrMissingSignature is returned when a migration claim carries a
	// consumer key but no signature.
	ErrMissingSignature = errors.New("migration claim has no signature")

	// ErrMissingConsumerKey is returned when migration is requested for a
	// consumer key without registered secrets.
	ErrMissingConsumerKey = errors.New("no secrets registered for consumer key")

	// ErrMissingID is returned when the launch carries no custom id
	// parameter referencing a published resource.
	ErrMissingID = errors.New("launch is missing the custom id parameter")

	// ErrInvalidID is returned when the custom id parameter references a
	// resource that does not exist.
	ErrInvalidID = errors.New("launch id parameter references no published resource")
)
