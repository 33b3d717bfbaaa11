// Package panel serves the browser remote control page.
//
// The page (index.html, remote.js, remote.css) is embedded with go:embed and
// talks to the REST API under /api/v1/tv using a bearer token the user
// pastes once; the token is kept in the browser's local storage.
package panel
