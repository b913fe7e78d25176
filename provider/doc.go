// Package provider ships reference implementations of the clientauth
// collaborator contracts against a generic OAuth2/REST identity backend:
// an HTTP [SessionProvider] with one-time-code endpoints and federated
// credential exchange, a JSON [ProfileStore], and a [BlobStore] returning
// retrievable avatar URLs.
//
// The core never depends on this package. Applications with their own
// backend SDK implement the interfaces in the root package directly and skip
// this one entirely.
package provider
