// Package api hosts HTTP handlers that front the Clipstream REST API.
//
// The handlers assembled by Handler coordinate request validation, response
// shaping, and ownership checks while delegating persistence to
// storage.Repository implementations injected at construction time. Token
// issuance, rotation, and verification are provided by auth.SessionManager
// instances passed into the handler; the package does not reach for globals
// or singletons and expects callers to supply fully configured dependencies.
//
// The media host client is also injected so user uploads (video files,
// thumbnails, avatars, cover images) can be stored without coupling the
// package to specific runtime wiring.
//
// Handler implementations assume upstream middleware from internal/server has
// already attached the authenticated user to the request context for
// protected routes. New routes should preserve that contract by leaning on
// requireAuthenticatedUser rather than re-verifying tokens.
package api
