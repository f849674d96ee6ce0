// Package auth attaches credentials to outbound requests sent to SPARQL
// endpoints.
//
// Three methods are supported: HTTP Basic, a static bearer token, and a
// bearer token minted on demand from a TokenSigner (HS256/RS256 JWTs). The
// package only signs; it never validates tokens presented by others.
package auth
