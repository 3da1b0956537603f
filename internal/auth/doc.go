// Package auth issues and validates the HMAC-signed bearer tokens that
// protect the HTTP API when an auth secret is configured.
package auth
