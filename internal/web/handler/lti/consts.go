package lti

const (
	// LoginPath is the OIDC third-party-initiated login endpoint platforms
	// redirect the browser to first.
	LoginPath = "/lti/login"

	// LaunchPath receives the id_token form post from the platform and
	// cached-launch re-entries.
	LaunchPath = "/lti/launch"
)
