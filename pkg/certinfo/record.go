package certinfo

import (
	"slices"
	"time"
)

// Validity is the window in which a certificate is valid. NotBefore is never
// after NotAfter.
type Validity struct {
	NotBefore time.Time `json:"notBefore"`
	NotAfter  time.Time `json:"notAfter"`
}

// Certificate holds the fields extracted from a single X.509 certificate.
type Certificate struct {
	Validity Validity `json:"validity"`

	// Issuer is the issuer's organization (O) attribute, empty when absent.
	Issuer string `json:"issuer,omitempty"`

	// CommonName is the subject's common name (CN) attribute, empty when absent.
	CommonName string `json:"commonName,omitempty"`

	// AltNames lists the subjectAltName entries in extension order. It is
	// empty, never nil, when the extension is absent.
	AltNames []string `json:"altNames"`
}

// Record binds a decoded certificate to the Secret it was read from.
type Record struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Certificate
}

// NewRecord returns the Record for the Secret namespace/name holding cert.
func NewRecord(namespace, name string, cert Certificate) Record {
	r := Record{
		Namespace:   namespace,
		Name:        name,
		Certificate: cert,
	}
	r.AltNames = cloneNames(cert.AltNames)
	return r
}

// Key returns the namespace/name identity of the record.
func (r Record) Key() string {
	return r.Namespace + "/" + r.Name
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	c := r
	c.AltNames = cloneNames(r.AltNames)
	return c
}

func cloneNames(names []string) []string {
	if names == nil {
		return []string{}
	}
	return slices.Clone(names)
}
