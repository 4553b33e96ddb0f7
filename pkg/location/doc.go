// Package location resolves and caches signed download URLs.
//
// A [Resolver] is the metadata collaborator: given a file-handle [Target] it
// returns the object's file name and a signed URL. A [Provider] wraps one
// Resolver for one object and hands out URLs that are guaranteed not to be
// expired at the moment of hand-off, refreshing them [DefaultExpiryBuffer]
// before the expiry encoded in the URL (see [ParseExpiry]).
//
// # States
//
//	expired ──Info()──▶ refreshing ──ok──▶ valid
//	   ▲                    │                │
//	   └──────error─────────┘◀──near expiry──┘
package location
