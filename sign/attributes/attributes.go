// Package attributes provides the CMS attribute model and the ETSI
// attribute set used by CAdES signatures.
package attributes

import (
	"encoding/asn1"
	"errors"
)

// Common errors
var (
	ErrInvalidAttribute     = errors.New("invalid attribute")
	ErrMissingAttributeType = errors.New("missing attribute type")
	ErrAttributeNotFound    = errors.New("attribute not found")
)

// OID definitions for CMS attributes
var (
	// Standard CMS attributes
	OIDContentType      = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	OIDMessageDigest    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	OIDSigningTime      = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
	OIDCountersignature = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 6}

	// Signature timestamp (RFC 3161)
	OIDSignatureTimeStampToken = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14}

	// Signing certificate v2 (RFC 5035)
	OIDSigningCertificateV2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 47}

	// ETSI EN 319 122 / RFC 5126 unsigned attributes
	OIDContentTimeStamp    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 20}
	OIDCertificateRefs     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 21}
	OIDRevocationRefs      = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 22}
	OIDCertValues          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 23}
	OIDRevocationValues    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 24}
	OIDEscTimeStamp        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 25}
	OIDCertCRLTimeStamp    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 26}
	OIDArchiveTimeStamp    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 27}
	OIDAttrCertificateRefs = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 44}
	OIDAttrRevocationRefs  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 45}
	OIDArchiveTimeStampV2  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 48}
	OIDArchiveTimeStampV3  = asn1.ObjectIdentifier{0, 4, 0, 1733, 2, 4}

	// Adobe revocation information
	OIDAdobeRevocationInfoArchival = asn1.ObjectIdentifier{1, 2, 840, 113583, 1, 1, 8}

	// Content types
	OIDData       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	OIDSignedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	OIDTSTInfo    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 4}

	// Hash algorithms
	OIDSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	OIDSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	OIDSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	OIDSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
)

// CMSAttribute represents a CMS attribute. Raw keeps the complete DER
// encoding of the attribute, which archive and validation-data timestamps
// are computed over.
type CMSAttribute struct {
	Raw    asn1.RawContent
	Type   asn1.ObjectIdentifier
	Values asn1.RawValue `asn1:"set"`
}

// CMSAttributes is a set of CMS attributes in encoding order.
type CMSAttributes []CMSAttribute

// Get retrieves an attribute by OID.
func (attrs CMSAttributes) Get(oid asn1.ObjectIdentifier) *CMSAttribute {
	for i := range attrs {
		if attrs[i].Type.Equal(oid) {
			return &attrs[i]
		}
	}
	return nil
}

// GetAll retrieves every attribute with the given OID, in encoding order.
func (attrs CMSAttributes) GetAll(oid asn1.ObjectIdentifier) []*CMSAttribute {
	var out []*CMSAttribute
	for i := range attrs {
		if attrs[i].Type.Equal(oid) {
			out = append(out, &attrs[i])
		}
	}
	return out
}

// Has checks if an attribute with the given OID exists.
func (attrs CMSAttributes) Has(oid asn1.ObjectIdentifier) bool {
	return attrs.Get(oid) != nil
}

// ValueBytes returns the DER encoding of each value of the attribute, in
// encoding order. Malformed trailing content is dropped rather than
// reported.
func (a *CMSAttribute) ValueBytes() [][]byte {
	var out [][]byte
	rest := a.Values.Bytes
	for len(rest) > 0 {
		var v asn1.RawValue
		tail, err := asn1.Unmarshal(rest, &v)
		if err != nil {
			break
		}
		out = append(out, v.FullBytes)
		rest = tail
	}
	return out
}

// Marshal encodes the CMSAttribute to ASN.1 DER.
func (a *CMSAttribute) Marshal() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	return asn1.Marshal(*a)
}

// AlgorithmIdentifier represents a cryptographic algorithm.
type AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

// ESSCertIDv2 represents a certificate identifier (RFC 5035).
type ESSCertIDv2 struct {
	HashAlgorithm AlgorithmIdentifier `asn1:"optional"`
	CertHash      []byte
	IssuerSerial  IssuerSerial `asn1:"optional"`
}

// IssuerSerial represents issuer and serial number.
type IssuerSerial struct {
	Issuer       asn1.RawValue
	SerialNumber asn1.RawValue
}

// SigningCertificateV2 represents the signing-certificate-v2 attribute.
type SigningCertificateV2 struct {
	Certs    []ESSCertIDv2 `asn1:"optional"`
	Policies asn1.RawValue `asn1:"optional"`
}

// OtherHashAlgAndValue is the hash of a referenced value (RFC 5126).
type OtherHashAlgAndValue struct {
	HashAlgorithm AlgorithmIdentifier
	HashValue     []byte
}

// OtherCertID references a certificate by hash (id-aa-ets-certificateRefs).
type OtherCertID struct {
	OtherCertHash OtherHashAlgAndValue
	IssuerSerial  IssuerSerial `asn1:"optional"`
}

// CrlIdentifier carries issuer and issue time of a referenced CRL.
type CrlIdentifier struct {
	CrlIssuer     asn1.RawValue
	CrlIssuedTime asn1.RawValue
	CrlNumber     asn1.RawValue `asn1:"optional"`
}

// CrlValidatedID references a CRL by hash (id-aa-ets-revocationRefs).
type CrlValidatedID struct {
	CrlHash OtherHashAlgAndValue
	CrlID   CrlIdentifier `asn1:"optional"`
}

// OcspResponsesID references an OCSP response by hash.
type OcspResponsesID struct {
	OcspIdentifier asn1.RawValue
	OcspRepHash    OtherHashAlgAndValue `asn1:"optional"`
}

// CrlOcspRef is one entry of a revocation-refs attribute.
type CrlOcspRef struct {
	CrlIDs   []CrlValidatedID  `asn1:"optional,explicit,tag:0"`
	OcspIDs  []OcspResponsesID `asn1:"optional,explicit,tag:1"`
	OtherRev asn1.RawValue     `asn1:"optional,explicit,tag:2"`
}

// RevocationValues is the value of a revocation-values attribute
// (RFC 5126): encapsulated CRLs and OCSP basic responses.
type RevocationValues struct {
	CrlVals  []asn1.RawValue `asn1:"optional,explicit,tag:0"`
	OcspVals []asn1.RawValue `asn1:"optional,explicit,tag:1"`
	OtherRev asn1.RawValue   `asn1:"optional,explicit,tag:2"`
}

// RevocationInfoArchival represents Adobe revocation information.
type RevocationInfoArchival struct {
	CRL          []asn1.RawValue `asn1:"optional,explicit,tag:0"`
	OCSP         []asn1.RawValue `asn1:"optional,explicit,tag:1"`
	OtherRevInfo []OtherRevInfo  `asn1:"optional,explicit,tag:2"`
}

// OtherRevInfo represents other revocation information.
type OtherRevInfo struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue
}

// ContentInfo represents CMS ContentInfo.
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,tag:0,optional"`
}

// HashOIDName maps a digest algorithm OID to its conventional name; the
// empty string means the OID is unknown.
func HashOIDName(oid asn1.ObjectIdentifier) string {
	switch {
	case oid.Equal(OIDSHA1):
		return "sha1"
	case oid.Equal(OIDSHA256):
		return "sha256"
	case oid.Equal(OIDSHA384):
		return "sha384"
	case oid.Equal(OIDSHA512):
		return "sha512"
	}
	return ""
}
