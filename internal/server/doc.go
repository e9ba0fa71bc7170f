// Package server hosts the Clipstream REST API behind a single HTTP server.
//
// The server builds a consistent middleware chain of request IDs, security
// headers, CORS, rate limiting, authentication, and logging so handlers all
// share common protections and instrumentation. The authentication middleware
// resolves the access token once per request and attaches the user to the
// request context; handlers decide whether an identity is required.
package server
