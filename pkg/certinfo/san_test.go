package certinfo

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/numtide/expiration-watcher/pkg/testutil"
)

type generalName struct {
	tag   int
	value []byte
}

func buildSANValue(t *testing.T, names ...generalName) []byte {
	t.Helper()
	var b cryptobyte.Builder
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, n := range names {
			b.AddASN1(cryptobyte_asn1.Tag(n.tag).ContextSpecific(), func(b *cryptobyte.Builder) {
				b.AddBytes(n.value)
			})
		}
	})
	der, err := b.Bytes()
	if err != nil {
		t.Fatalf("failed to build subjectAltName: %v", err)
	}
	return der
}

func TestSubjectAltNames(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		exts    func(t *testing.T) []pkix.Extension
		want    []string
		wantErr bool
	}{
		"No extensions": {
			exts: func(*testing.T) []pkix.Extension { return nil },
			want: nil,
		},
		"Extension with a different OID": {
			exts: func(*testing.T) []pkix.Extension {
				return []pkix.Extension{{Id: asn1.ObjectIdentifier{1, 2, 3}}}
			},
			want: nil,
		},
		"Encoding order is preserved across name forms": {
			exts: func(t *testing.T) []pkix.Extension {
				return []pkix.Extension{
					{Id: asn1.ObjectIdentifier{1, 2, 3}},
					{
						Id: oidSubjectAltName,
						Value: buildSANValue(t,
							generalName{nameTypeIP, net.ParseIP("192.168.1.1").To4()},
							generalName{nameTypeDNS, []byte("b.example.com")},
							generalName{nameTypeURI, []byte("spiffe://td/ns/x/sa/y")},
							generalName{nameTypeDNS, []byte("a.example.com")},
						),
					},
				}
			},
			want: []string{"192.168.1.1", "b.example.com", "spiffe://td/ns/x/sa/y", "a.example.com"},
		},
		"Unsupported name forms are skipped": {
			exts: func(t *testing.T) []pkix.Extension {
				return []pkix.Extension{{
					Id: oidSubjectAltName,
					Value: buildSANValue(t,
						generalName{8, []byte{0x2a, 0x03}}, // registeredID
						generalName{nameTypeDNS, []byte("kept.example.com")},
					),
				}}
			},
			want: []string{"kept.example.com"},
		},
		"Empty sequence": {
			exts: func(t *testing.T) []pkix.Extension {
				return []pkix.Extension{{Id: oidSubjectAltName, Value: buildSANValue(t)}}
			},
			want: []string{},
		},
		"Error: not a sequence": {
			exts: func(*testing.T) []pkix.Extension {
				return []pkix.Extension{{Id: oidSubjectAltName, Value: []byte("bad value")}}
			},
			wantErr: true,
		},
		"Error: trailing data": {
			exts: func(t *testing.T) []pkix.Extension {
				v := buildSANValue(t, generalName{nameTypeDNS, []byte("a.example.com")})
				return []pkix.Extension{{Id: oidSubjectAltName, Value: append(v, 'x')}}
			},
			wantErr: true,
		},
		"Error: bad IP length": {
			exts: func(t *testing.T) []pkix.Extension {
				return []pkix.Extension{{
					Id:    oidSubjectAltName,
					Value: buildSANValue(t, generalName{nameTypeIP, []byte{1, 2, 3}}),
				}}
			},
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := SubjectAltNames(tc.exts(t))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("SubjectAltNames() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodePEM_PreservesSANOrder(t *testing.T) {
	t.Parallel()

	ca := testutil.NewCA(t)
	certPEM := ca.IssuePEM(t, testutil.CertOptions{
		CommonName: "ordered.example.com",
		ExtraExtensions: []pkix.Extension{{
			Id: oidSubjectAltName,
			Value: buildSANValue(t,
				generalName{nameTypeIP, net.ParseIP("10.1.2.3").To4()},
				generalName{nameTypeDNS, []byte("ordered.example.com")},
				generalName{nameTypeEmail, []byte("owner@example.com")},
			),
		}},
	})

	got, err := DecodePEM(certPEM)
	if err != nil {
		t.Fatalf("DecodePEM() unexpected error: %v", err)
	}
	want := []string{"10.1.2.3", "ordered.example.com", "owner@example.com"}
	if diff := cmp.Diff(want, got.AltNames); diff != "" {
		t.Errorf("AltNames mismatch (-want +got):\n%s", diff)
	}
}
