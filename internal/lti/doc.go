// Package lti implements the LTI 1.3 message layer of the tool: the claim
// model of launch id_tokens, role vocabulary classification, id_token
// verification against platform keysets and validation of LTI 1.1 migration
// claims.
package lti
