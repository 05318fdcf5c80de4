package discovery

import (
	corev1 "k8s.io/api/core/v1"
)

const (
	// AnnotationPrefix namespaces the annotations owned by the watcher.
	AnnotationPrefix = "expiration-watcher/"

	// WatchAnnotation opts a secret in when its value is exactly "true".
	WatchAnnotation = AnnotationPrefix + "watch"

	// CertManagerCommonNameAnnotation is set by cert-manager on the secrets it
	// issues. Its presence alone opts a secret in.
	CertManagerCommonNameAnnotation = "cert-manager.io/common-name"
)

// ShouldWatch reports whether secret is in scope for expiration tracking.
// The decision only looks at annotations, so it is safe to call on secrets
// of any type.
func ShouldWatch(secret *corev1.Secret) bool {
	if secret == nil {
		return false
	}
	annotations := secret.GetAnnotations()
	if annotations[WatchAnnotation] == "true" {
		return true
	}
	_, managed := annotations[CertManagerCommonNameAnnotation]
	return managed
}
