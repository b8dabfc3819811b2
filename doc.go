// Package main provides the entry point for GoLTI-Tool, an LTI 1.3 /
// LTI Advantage tool provider. It runs a web server using the Fiber framework
// that accepts platform-initiated OIDC logins, verifies signed launch tokens,
// binds platform identities to local accounts and enrols launched users into
// the courses behind published resources. The application uses gorm for data
// persistence of the registration/deployment/context/resource-link/user graph.
package main
