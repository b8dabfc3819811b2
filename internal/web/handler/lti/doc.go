// Package lti serves the platform-facing launch endpoints: the OIDC
// third-party-initiated login and the launch receiver taking the id_token
// form post.
package lti
