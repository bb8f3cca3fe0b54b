// Package audit records security-relevant events: denied authorization
// decisions, grant and role mutations, invitation lifecycle, and admin
// actions.
//
// The guard layer emits an event for every denial, naming the principal,
// attempted action and target resource. Loggers are best-effort: a failed
// audit write never fails the guarded operation.
package audit
