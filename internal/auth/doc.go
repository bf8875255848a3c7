// Package auth issues and validates the bearer tokens that protect the
// status API.
//
// Tokens are HS256 JWTs carrying a subject and one of two roles:
//
//	viewer    read devices, events, and the event stream
//	operator  viewer + trigger discovery
//
// There is no user store. Operators mint tokens offline with the configured
// secret (cloudlink token -role viewer) and hand them to dashboards.
package auth
