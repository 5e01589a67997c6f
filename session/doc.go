// Package session holds the browser-equivalent session state the
// library maintains against github.com: the cookie snapshot, the CSRF
// token scraped from the authenticated page, and the validity window.
//
// # Ownership
//
// A *Session is created and owned by the client's authenticator;
// executing calls borrow it for the duration of one request. Only the
// validity flag is mutated after creation, and only through
// [Session.Invalidate].
//
// # Persistence
//
// Sessions live in process memory. The optional [Store] persists sealed
// bundles to Redis so a new process can resume a session without
// replaying the login handshake; [Sealer] signs bundles before they
// leave the process so a tampered or expired bundle is rejected on
// restore rather than silently reinstated.
package session
