// Package ghWeb is a client for GitHub's non-public HTTP endpoints:
// the ones the web UI itself calls, which have no REST or GraphQL
// counterpart. It authenticates the way a browser does (login form,
// optional TOTP two-factor step, cookies, page-embedded CSRF tokens)
// and executes declaratively bound endpoints with retries, coalesced
// session refresh, and response-shape drift detection.
//
// The package is designed for concurrent callers: Client methods are
// safe from multiple goroutines after construction through
// [Builder.Build], and at most one login handshake is in flight per
// client no matter how many calls are blocked on it.
//
// # Architecture boundaries
//
// ghWeb is the public surface. It exposes [Client], [Builder],
// [Config], [Credentials], the typed error set, and per-endpoint
// wrappers. Endpoint descriptions live in the binding sub-package,
// session state in session; HTML form scraping and the retry schedule
// are internal.
//
// # What this package must NOT do
//
//   - Speak the documented REST or GraphQL APIs; that is what
//     stable, supported clients are for.
//   - Return a partially typed value from a drifted response. A body
//     failing its binding's shape check always surfaces as
//     [SchemaDriftError].
//   - Hold session state in package-level variables. Each Client owns
//     one credential context; several can coexist in a process.
//
// # Stability contract
//
// The endpoints this package binds are not contractually stable:
// GitHub can change them without notice. The drift detector exists so
// such changes surface as typed, diagnosable failures rather than
// corrupt results.
package ghWeb
