// Package clientauth is a client-side identity and profile session layer.
// It sits between an application and a remote identity/storage backend and
// owns three things: the authoritative authentication state shared by all
// sign-in methods (federated credential, one-time email code, guest mode),
// the rate-limited one-time-code flow with its user-visible resend cooldown,
// and a durable local cache of the signed-in user's public profile kept
// consistent with the remote source of truth.
//
// The backend itself is opaque: callers supply a [SessionProvider], a
// [ProfileStore] and a [BlobStore] (reference HTTP implementations live in
// the provider subpackage) plus a Redis client for the durable local state.
// Everything is wired through [Builder]:
//
//	client, err := clientauth.New().
//	    WithRedis(rdb).
//	    WithSessionProvider(sessions).
//	    WithProfileStore(profiles).
//	    WithBlobStore(blobs).
//	    Build()
//
// All mutating operations are serialized internally; network calls to the
// collaborators are the only suspension points, and responses that arrive
// after a local Reset or SignOut are discarded rather than applied.
package clientauth
