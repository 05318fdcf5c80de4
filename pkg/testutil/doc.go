// Package testutil provides fixtures for the watcher's tests: a throwaway CA
// that issues real X.509 certificates, and builders for kubernetes.io/tls
// secrets served by a fake controller-runtime client.
//
// Example:
//
//	ca := testutil.NewCA(t, "Example CA")
//	certPEM := ca.IssuePEM(t, testutil.CertOptions{
//	    CommonName: "app.example.com",
//	    NotAfter:   time.Now().Add(10 * 24 * time.Hour),
//	})
//	cl := testutil.NewSecretClientBuilder(
//	    testutil.TLSSecret("app", "tls-cert", testutil.WatchedAnnotations(), certPEM),
//	).Build()
//
// The fake client indexes secrets by their type, so List calls filtered with
// client.MatchingFields{"type": "kubernetes.io/tls"} behave like the API server.
package testutil
