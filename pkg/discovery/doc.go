// Package discovery finds the TLS secrets the watcher is responsible for and
// turns them into a certificate snapshot.
//
// A secret is selected when it carries expiration-watcher/watch="true" or any
// cert-manager.io/common-name annotation. Each build performs a single List of
// kubernetes.io/tls secrets across all namespaces. A secret whose certificate
// cannot be decoded is logged and left out; it never fails the build. Only a
// failing List does, as a *SourceUnavailableError.
//
// Usage:
//
//	b := discovery.NewBuilder(mgr.GetAPIReader(), recorder)
//	snap, err := b.Build(ctx)
package discovery
