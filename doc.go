// Package account provides a small user-account and session service: user
// registration, credential verification and signed access/refresh tokens
// backed by a bun store.
//
// Token classes:
//   - Access tokens prove identity for resource operations. Resolve accepts
//     access tokens and tokens without a class, never refresh tokens.
//   - Refresh tokens can only be exchanged for a new TokenPair through the
//     refresh_token grant. Rotation is stateless: the presented refresh
//     token remains valid until it expires.
//
// Errors:
//   - Every error returned by the services carries an oops code (see
//     ErrorCode). Unknown identities and wrong passwords share the same
//     UNAUTHORIZED error so callers cannot enumerate accounts.
//
// Activity sinks:
//   - ActivitySink receives login, refresh and lifecycle events. Sinks run
//     best-effort: errors are logged and never fail the request.
package account
