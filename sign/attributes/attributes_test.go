package attributes

import (
	"bytes"
	"encoding/asn1"
	"testing"
)

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	der, err := asn1.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return der
}

func makeAttribute(t *testing.T, oid asn1.ObjectIdentifier, values ...[]byte) CMSAttribute {
	t.Helper()
	var joined []byte
	for _, v := range values {
		joined = append(joined, v...)
	}
	attr := CMSAttribute{
		Type: oid,
		Values: asn1.RawValue{
			Class:      asn1.ClassUniversal,
			Tag:        asn1.TagSet,
			IsCompound: true,
			Bytes:      joined,
		},
	}
	// Round-trip to populate Raw the way parsing does.
	der, err := asn1.Marshal(attr)
	if err != nil {
		t.Fatalf("failed to marshal attribute: %v", err)
	}
	var parsed CMSAttribute
	if _, err := asn1.Unmarshal(der, &parsed); err != nil {
		t.Fatalf("failed to reparse attribute: %v", err)
	}
	return parsed
}

func TestAttributesGet(t *testing.T) {
	attrs := CMSAttributes{
		makeAttribute(t, OIDSignatureTimeStampToken, mustMarshal(t, 1)),
		makeAttribute(t, OIDCertValues, mustMarshal(t, 2)),
	}

	if got := attrs.Get(OIDSignatureTimeStampToken); got == nil {
		t.Error("Get did not find the timestamp attribute")
	}
	if got := attrs.Get(OIDArchiveTimeStampV2); got != nil {
		t.Error("Get found an absent attribute")
	}
	if !attrs.Has(OIDCertValues) {
		t.Error("Has did not report an existing attribute")
	}
}

func TestAttributesGetAllPreservesOrder(t *testing.T) {
	first := makeAttribute(t, OIDSignatureTimeStampToken, mustMarshal(t, 1))
	second := makeAttribute(t, OIDSignatureTimeStampToken, mustMarshal(t, 2))
	attrs := CMSAttributes{
		first,
		makeAttribute(t, OIDCertValues, mustMarshal(t, 3)),
		second,
	}

	all := attrs.GetAll(OIDSignatureTimeStampToken)
	if len(all) != 2 {
		t.Fatalf("GetAll = %d attributes, want 2", len(all))
	}
	if !bytes.Equal(all[0].Raw, first.Raw) || !bytes.Equal(all[1].Raw, second.Raw) {
		t.Error("GetAll did not preserve encoding order")
	}
}

func TestValueBytes(t *testing.T) {
	v1 := mustMarshal(t, 41)
	v2 := mustMarshal(t, 42)
	attr := makeAttribute(t, OIDCertValues, v1, v2)

	values := attr.ValueBytes()
	if len(values) != 2 {
		t.Fatalf("ValueBytes = %d values, want 2", len(values))
	}
	if !bytes.Equal(values[0], v1) || !bytes.Equal(values[1], v2) {
		t.Error("ValueBytes did not return the value encodings in order")
	}
}

func TestValueBytesMalformedTail(t *testing.T) {
	attr := CMSAttribute{
		Type: OIDCertValues,
		Values: asn1.RawValue{
			Bytes: append(mustMarshal(t, 7), 0xff, 0x00),
		},
	}
	values := attr.ValueBytes()
	if len(values) != 1 {
		t.Errorf("ValueBytes = %d values, want 1 (malformed tail dropped)", len(values))
	}
}

func TestAttributeMarshalRoundTrip(t *testing.T) {
	attr := makeAttribute(t, OIDRevocationValues, mustMarshal(t, 9))

	der, err := attr.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !bytes.Equal(der, attr.Raw) {
		t.Error("Marshal did not return the original encoding")
	}

	var parsed CMSAttribute
	if _, err := asn1.Unmarshal(der, &parsed); err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if !parsed.Type.Equal(OIDRevocationValues) {
		t.Errorf("round-tripped type = %v", parsed.Type)
	}
}

func TestETSIAttributeOIDs(t *testing.T) {
	// The unsigned-attribute OIDs drive the CAdES classifier; a typo here
	// silently turns attributes into unknowns.
	tests := []struct {
		name string
		oid  asn1.ObjectIdentifier
		want string
	}{
		{"content-timestamp", OIDContentTimeStamp, "1.2.840.113549.1.9.16.2.20"},
		{"signature-timestamp", OIDSignatureTimeStampToken, "1.2.840.113549.1.9.16.2.14"},
		{"certificate-refs", OIDCertificateRefs, "1.2.840.113549.1.9.16.2.21"},
		{"revocation-refs", OIDRevocationRefs, "1.2.840.113549.1.9.16.2.22"},
		{"cert-values", OIDCertValues, "1.2.840.113549.1.9.16.2.23"},
		{"revocation-values", OIDRevocationValues, "1.2.840.113549.1.9.16.2.24"},
		{"esc-timestamp", OIDEscTimeStamp, "1.2.840.113549.1.9.16.2.25"},
		{"cert-crl-timestamp", OIDCertCRLTimeStamp, "1.2.840.113549.1.9.16.2.26"},
		{"archive-timestamp", OIDArchiveTimeStamp, "1.2.840.113549.1.9.16.2.27"},
		{"attr-cert-refs", OIDAttrCertificateRefs, "1.2.840.113549.1.9.16.2.44"},
		{"attr-revocation-refs", OIDAttrRevocationRefs, "1.2.840.113549.1.9.16.2.45"},
		{"archive-timestamp-v2", OIDArchiveTimeStampV2, "1.2.840.113549.1.9.16.2.48"},
		{"archive-timestamp-v3", OIDArchiveTimeStampV3, "0.4.0.1733.2.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.oid.String(); got != tt.want {
				t.Errorf("OID = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHashOIDName(t *testing.T) {
	tests := []struct {
		oid  asn1.ObjectIdentifier
		want string
	}{
		{OIDSHA1, "sha1"},
		{OIDSHA256, "sha256"},
		{OIDSHA384, "sha384"},
		{OIDSHA512, "sha512"},
		{asn1.ObjectIdentifier{1, 2, 3}, ""},
	}
	for _, tt := range tests {
		if got := HashOIDName(tt.oid); got != tt.want {
			t.Errorf("HashOIDName(%v) = %q, want %q", tt.oid, got, tt.want)
		}
	}
}

func TestRevocationValuesRoundTrip(t *testing.T) {
	values := RevocationValues{
		CrlVals: []asn1.RawValue{{FullBytes: mustMarshal(t, 11)}},
	}
	der := mustMarshal(t, values)

	var parsed RevocationValues
	if _, err := asn1.Unmarshal(der, &parsed); err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if len(parsed.CrlVals) != 1 {
		t.Errorf("CrlVals = %d, want 1", len(parsed.CrlVals))
	}
	if len(parsed.OcspVals) != 0 {
		t.Errorf("OcspVals = %d, want 0", len(parsed.OcspVals))
	}
}

func TestOtherCertIDRoundTrip(t *testing.T) {
	ref := OtherCertID{
		OtherCertHash: OtherHashAlgAndValue{
			HashAlgorithm: AlgorithmIdentifier{Algorithm: OIDSHA256},
			HashValue:     []byte{1, 2, 3, 4},
		},
	}
	der := mustMarshal(t, []OtherCertID{ref})

	var parsed []OtherCertID
	if _, err := asn1.Unmarshal(der, &parsed); err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("parsed %d refs, want 1", len(parsed))
	}
	if !bytes.Equal(parsed[0].OtherCertHash.HashValue, ref.OtherCertHash.HashValue) {
		t.Error("hash value mismatch after round trip")
	}
}
