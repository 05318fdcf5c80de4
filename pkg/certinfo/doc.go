// Package certinfo turns the certificate material stored in a TLS Secret into
// a normalized Record: validity window, issuer organization, subject common
// name and subject alternative names.
//
// Decoding is pure and does no I/O. A blob that is not valid base64, not PEM,
// or not a parseable X.509 certificate yields a *DecodeError naming the stage
// that failed. A well-formed certificate that lacks optional attributes never
// fails; the missing fields are simply left empty.
//
// Usage:
//
//	cert, err := certinfo.DecodePEM(secret.Data[corev1.TLSCertKey])
//	if err != nil {
//	    // skip this secret
//	}
//	record := certinfo.NewRecord(secret.Namespace, secret.Name, cert)
package certinfo
