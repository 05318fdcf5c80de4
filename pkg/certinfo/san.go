package certinfo

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"net"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}

// GeneralName tags (RFC 5280, section 4.2.1.6).
const (
	nameTypeEmail = 1
	nameTypeDNS   = 2
	nameTypeURI   = 6
	nameTypeIP    = 7
)

// SubjectAltNames returns the entries of the subjectAltName extension found
// in exts, in the order they are encoded. It returns nil and no error when
// the extension is absent. Name forms other than e-mail, DNS, URI and IP are
// skipped.
func SubjectAltNames(exts []pkix.Extension) ([]string, error) {
	for _, ext := range exts {
		if ext.Id.Equal(oidSubjectAltName) {
			return parseSubjectAltNames(ext.Value)
		}
	}
	return nil, nil
}

func parseSubjectAltNames(der []byte) ([]string, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) || !input.Empty() {
		return nil, errors.New("malformed subjectAltName extension")
	}

	names := []string{}
	for !seq.Empty() {
		var value cryptobyte.String
		var tag cryptobyte_asn1.Tag
		if !seq.ReadAnyASN1(&value, &tag) {
			return nil, errors.New("malformed subjectAltName entry")
		}

		switch tag ^ 0x80 {
		case nameTypeEmail, nameTypeDNS, nameTypeURI:
			names = append(names, string(value))
		case nameTypeIP:
			if len(value) != net.IPv4len && len(value) != net.IPv6len {
				return nil, fmt.Errorf("invalid IP address length %d in subjectAltName", len(value))
			}
			names = append(names, net.IP(value).String())
		}
	}
	return names, nil
}
