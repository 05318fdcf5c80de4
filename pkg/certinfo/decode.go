package certinfo

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
)

// Stage names the decoding step that failed.
type Stage string

const (
	StageBase64   Stage = "base64"
	StagePEM      Stage = "pem"
	StageX509     Stage = "x509"
	StageValidity Stage = "validity"
)

// Accepted PEM block types. The second is the pre-RFC 7468 label.
const (
	pemBlockCertificate     = "CERTIFICATE"
	pemBlockX509Certificate = "X509 CERTIFICATE"
)

// DecodeError reports certificate material that could not be decoded.
type DecodeError struct {
	Stage Stage
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode certificate (%s): %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// internal variable for mocking in tests
var parseCertificate = x509.ParseCertificate

// Decode base64-decodes encoded into PEM text and decodes the first
// certificate it contains.
func Decode(encoded []byte) (Certificate, error) {
	encoded = bytes.TrimSpace(encoded)
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(raw, encoded)
	if err != nil {
		return Certificate{}, &DecodeError{Stage: StageBase64, Err: err}
	}
	return DecodePEM(raw[:n])
}

// DecodePEM decodes the first PEM block of data as an X.509 certificate.
// Trailing blocks (intermediates of a chain) are ignored.
func DecodePEM(data []byte) (Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return Certificate{}, &DecodeError{Stage: StagePEM, Err: errors.New("no PEM block found")}
	}
	if block.Type != pemBlockCertificate && block.Type != pemBlockX509Certificate {
		return Certificate{}, &DecodeError{
			Stage: StagePEM,
			Err:   fmt.Errorf("unexpected PEM block type %q", block.Type),
		}
	}

	cert, err := parseCertificate(block.Bytes)
	if err != nil {
		return Certificate{}, &DecodeError{Stage: StageX509, Err: err}
	}
	return FromX509(cert)
}

// FromX509 extracts the certificate fields from a parsed certificate.
func FromX509(cert *x509.Certificate) (Certificate, error) {
	if cert.NotAfter.Before(cert.NotBefore) {
		return Certificate{}, &DecodeError{
			Stage: StageValidity,
			Err: fmt.Errorf("notAfter %s is before notBefore %s",
				cert.NotAfter.UTC(), cert.NotBefore.UTC()),
		}
	}

	altNames, err := SubjectAltNames(cert.Extensions)
	if err != nil {
		return Certificate{}, &DecodeError{Stage: StageX509, Err: err}
	}
	if altNames == nil {
		altNames = []string{}
	}

	out := Certificate{
		Validity: Validity{
			NotBefore: cert.NotBefore.UTC(),
			NotAfter:  cert.NotAfter.UTC(),
		},
		CommonName: cert.Subject.CommonName,
		AltNames:   altNames,
	}
	// The last O attribute wins, as with CN.
	if orgs := cert.Issuer.Organization; len(orgs) > 0 {
		out.Issuer = orgs[len(orgs)-1]
	}
	return out, nil
}
