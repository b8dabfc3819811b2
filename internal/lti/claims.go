package lti

// LTI 1.3 claim URIs used by the launch flow.
const (
	ClaimDeploymentID = "https://purl.imsglobal.org/spec/lti/claim/deployment_id"
	ClaimMessageType  = "https://purl.imsglobal.org/spec/lti/claim/message_type"
	ClaimVersion      = "https://purl.imsglobal.org/spec/lti/claim/version"
	ClaimRoles        = "https://purl.imsglobal.org/spec/lti/claim/roles"
	ClaimContext      = "https://purl.imsglobal.org/spec/lti/claim/context"
	ClaimResourceLink = "https://purl.imsglobal.org/spec/lti/claim/resource_link"
	ClaimCustom       = "https://purl.imsglobal.org/spec/lti/claim/custom"
	ClaimTargetLink   = "https://purl.imsglobal.org/spec/lti/claim/target_link_uri"
	ClaimLTI1p1       = "https://purl.imsglobal.org/spec/lti/claim/lti1p1"
)

// Custom launch parameter keys the tool understands.
const (
	// CustomIDParam carries the local id of the published resource.
	CustomIDParam = "id"
	// CustomForceEmbedParam requests the forced-embedding display hint.
	CustomForceEmbedParam = "forceembed"
)

// MessageTypeResourceLink is the message_type of a plain launch.
const MessageTypeResourceLink = "LtiResourceLinkRequest"

// ContextClaim is the course/group container the launch happened in.
type ContextClaim struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Title string   `json:"title"`
	Types []string `json:"type"`
}

// ResourceLinkClaim identifies the placement the launch came from.
type ResourceLinkClaim struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// MigrationClaim is the lti1p1 claim carried by launches from migrated
// LTI 1.1 consumers. It is validated once per launch and never persisted.
type MigrationClaim struct {
	UserID                   string `json:"user_id"`
	ConsumerKey              string `json:"oauth_consumer_key"`
	Signature                string `json:"oauth_consumer_key_sign"`
	ContextID                string `json:"context_id"`
	ToolConsumerInstanceGUID string `json:"tool_consumer_instance_guid"`
	ResourceLinkID           string `json:"resource_link_id"`
}

// LaunchClaims is the validated claim set of one launch id_token.
type LaunchClaims struct {
	// Issuer and Subject are copied from the verified token envelope.
	Issuer  string `json:"-"`
	Subject string `json:"-"`
	// ClientID is the registration client id the token was accepted for.
	ClientID string `json:"-"`

	Nonce      string `json:"nonce"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Email      string `json:"email"`
	Picture    string `json:"picture"`
	Locale     string `json:"locale"`

	MessageType  string             `json:"https://purl.imsglobal.org/spec/lti/claim/message_type"`
	Version      string             `json:"https://purl.imsglobal.org/spec/lti/claim/version"`
	DeploymentID string             `json:"https://purl.imsglobal.org/spec/lti/claim/deployment_id"`
	TargetLink   string             `json:"https://purl.imsglobal.org/spec/lti/claim/target_link_uri"`
	Roles        []string           `json:"https://purl.imsglobal.org/spec/lti/claim/roles"`
	Context      *ContextClaim      `json:"https://purl.imsglobal.org/spec/lti/claim/context"`
	ResourceLink *ResourceLinkClaim `json:"https://purl.imsglobal.org/spec/lti/claim/resource_link"`
	Custom       map[string]string  `json:"https://purl.imsglobal.org/spec/lti/claim/custom"`
	Migration    *MigrationClaim    `json:"https://purl.imsglobal.org/spec/lti/claim/lti1p1"`
}

// CustomParam returns the value of a custom launch parameter, "" when absent.
func (c *LaunchClaims) CustomParam(key string) string {
	if c.Custom == nil {
		return ""
	}
	return c.Custom[key]
}
