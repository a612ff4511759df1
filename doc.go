// Package authsync keeps a single client side view of "who is currently
// authenticated" in sync with a credential store that can change on its own.
//
// Session controller:
//   - Controller exposes Login, Logout and Register plus a Snapshot of the
//     current {Token, Identity, IsLoading} triple. The identity half is only
//     ever written by the credential store change listener, so a login done
//     here and a logout triggered elsewhere go through the same code path.
//   - IsLoading is owned by Login and Register. Overlapping calls each toggle
//     it independently; the last call to finish decides the final value.
//
// Credential stores:
//   - CredentialStore implementations live under store/ (memory, file,
//     sqlstore). They persist the pair and notify listeners synchronously.
//
// Identity services:
//   - identity/httpclient talks to a remote service over HTTP and writes the
//     store on successful authentication. identity/local does the same in
//     process on top of a bun backed user directory, which identity/httpserver
//     also exposes over HTTP.
//
// Activity sinks:
//   - ActivitySink receives login, logout, register and session change events.
//     Sinks run best-effort (errors are logged).
package authsync
