// Package auth issues and validates the bearer tokens that guard the HTTP API.
//
// Tokens are HS256 JWTs carrying a subject, a role and a random ID. Roles map
// statically to permissions:
//
//	viewer   → tv:read
//	operator → tv:read, tv:operate
//	admin    → tv:read, tv:operate, tv:pair
//
// There are no user accounts. Tokens are minted offline with
// "tvbridge token --subject NAME --role ROLE" and validated by signature only.
package auth
