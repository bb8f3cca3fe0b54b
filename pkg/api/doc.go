// Package api exposes the HTTP surface of the authorization service.
//
// Handlers are deliberately thin: they parse the request, call a guard
// method, and translate the outcome. Authorization decisions live in
// pkg/guard and pkg/authz; a handler that touches the checker directly is
// a bug, with the single exception of the /authz introspection endpoints,
// which exist to show the raw engine verdict (super-admin bypass
// intentionally excluded).
package api
