// Package uniuri generates random strings from crypto/rand, rejecting bytes
// that would introduce modulo bias. Used for launch ids, OIDC state/nonce
// values and binding confirmation tokens.
package uniuri
