// Package platform is the HTTP client for the social platform's API.
//
// A Client logs in once with Credentials and then carries a bearer token on
// every call. Each request is tagged with a fresh X-Request-ID. Non-2xx
// responses become *errors.Error values typed by status, with oversized media
// uploads reported as ErrorTypeMediaTooLarge.
//
// The client performs exactly one exchange per call and never retries, so
// callers can count every call against their quota.
package platform
