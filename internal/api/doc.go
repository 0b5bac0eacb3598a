// Package api serves the document store over HTTP.
//
// The Server type wraps a net/http server bound to a configured address and
// maps the store's error taxonomy onto HTTP status codes. Route shapes are a
// product choice of this package, not a store contract.
package api
