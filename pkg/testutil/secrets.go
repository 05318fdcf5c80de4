package testutil

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

// Annotations used by the expiration watcher, repeated here so fixtures do
// not depend on the packages under test.
const (
	WatchAnnotation                 = "expiration-watcher/watch"
	CertManagerCommonNameAnnotation = "cert-manager.io/common-name"
)

// WatchedAnnotations marks a secret as watched through the explicit opt-in.
func WatchedAnnotations() map[string]string {
	return map[string]string{WatchAnnotation: "true"}
}

// TLSSecret builds a kubernetes.io/tls Secret. A nil certPEM leaves tls.crt
// out of the data entirely.
func TLSSecret(namespace, name string, annotations map[string]string, certPEM []byte) *corev1.Secret {
	data := map[string][]byte{
		corev1.TLSPrivateKeyKey: []byte("key"),
	}
	if certPEM != nil {
		data[corev1.TLSCertKey] = certPEM
	}
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Namespace:   namespace,
			Name:        name,
			Annotations: annotations,
		},
		Type: corev1.SecretTypeTLS,
		Data: data,
	}
}

// Scheme returns a scheme holding the client-go built-in types.
func Scheme() *runtime.Scheme {
	s := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(s)
	return s
}

// NewSecretClientBuilder returns a fake client builder seeded with objs that
// can serve List calls filtered on the Secret "type" field.
func NewSecretClientBuilder(objs ...client.Object) *fake.ClientBuilder {
	return fake.NewClientBuilder().
		WithScheme(Scheme()).
		WithObjects(objs...).
		WithIndex(&corev1.Secret{}, "type", func(obj client.Object) []string {
			secret, ok := obj.(*corev1.Secret)
			if !ok {
				return nil
			}
			return []string{string(secret.Type)}
		})
}
