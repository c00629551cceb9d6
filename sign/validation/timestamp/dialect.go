package timestamp

import (
	"github.com/LuisAnazgo/dss/sign/validation/identifier"
	"github.com/LuisAnazgo/dss/sign/validation/sources"
)

// Attribute is one signed or unsigned property of the signature. Its
// concrete type belongs to the dialect; the core only routes it through the
// classifier and the extractors.
type Attribute interface{}

// SignatureScope is one portion of signed data covered by the signature.
type SignatureScope struct {
	ID   identifier.Identifier
	Name string
}

// SignatureContext carries everything the timestamp source needs from the
// parsed signature. The core stores these values at construction time and
// never calls back into the enclosing signature.
type SignatureContext struct {
	// SignatureID is the stable identifier of the signature.
	SignatureID identifier.Identifier

	// Scopes are the signed-data portions covered by the signature.
	Scopes []SignatureScope

	// SignedAttributes and UnsignedAttributes are the signature properties
	// in document order.
	SignedAttributes   []Attribute
	UnsignedAttributes []Attribute

	// HasUnsignedProperties reports whether the signature carries an
	// unsigned-properties container at all. When false the unsigned phase
	// of the builder is skipped even if UnsignedAttributes is empty.
	HasUnsignedProperties bool

	// CertificateSource, CRLSource and OCSPSource hold the validation
	// material found in the signature itself.
	CertificateSource *sources.CertificateSource
	CRLSource         *sources.CRLSource
	OCSPSource        *sources.OCSPSource
}

// Classifier maps an attribute to its timestamp or validation-data
// category. The predicates are mutually exclusive per attribute; an
// attribute matching none is skipped by the builder.
type Classifier interface {
	IsContentTimestamp(Attribute) bool
	IsAllDataObjectsTimestamp(Attribute) bool
	IsIndividualDataObjectsTimestamp(Attribute) bool
	IsSignatureTimestamp(Attribute) bool
	IsCompleteCertificateRef(Attribute) bool
	IsAttributeCertificateRef(Attribute) bool
	IsCompleteRevocationRef(Attribute) bool
	IsAttributeRevocationRef(Attribute) bool
	IsRefsOnlyTimestamp(Attribute) bool
	IsSigAndRefsTimestamp(Attribute) bool
	IsCertificateValues(Attribute) bool
	IsRevocationValues(Attribute) bool
	IsArchiveTimestamp(Attribute) bool
	IsTimeStampValidationData(Attribute) bool
}

// Extractor yields the materials carried by a recognised attribute.
// Extractors fail soft: a timestamp value that does not parse yields a nil
// token and an error the builder logs; a malformed sub-element is omitted.
type Extractor interface {
	// MakeTimestampToken parses the timestamp carried by the attribute and
	// wraps it with kind and initial covered references.
	MakeTimestampToken(attr Attribute, kind Kind, refs []Reference) (*Token, error)

	// CertificateRefDigests returns the digests of a certificate-refs
	// attribute.
	CertificateRefDigests(attr Attribute) []identifier.Digest

	// RevocationRefCRLDigests returns the CRL digests of a revocation-refs
	// attribute.
	RevocationRefCRLDigests(attr Attribute) []identifier.Digest

	// RevocationRefOCSPDigests returns the OCSP digests of a
	// revocation-refs attribute.
	RevocationRefOCSPDigests(attr Attribute) []identifier.Digest

	// EncapsulatedCertificates returns the identifiers of the certificates
	// carried by a certificate-values (or validation-data) attribute.
	EncapsulatedCertificates(attr Attribute) []identifier.Identifier

	// EncapsulatedCRLs returns the CRL binaries carried by a
	// revocation-values (or validation-data) attribute.
	EncapsulatedCRLs(attr Attribute) []*sources.CRLBinary

	// EncapsulatedOCSPs returns the OCSP binaries carried by a
	// revocation-values (or validation-data) attribute.
	EncapsulatedOCSPs(attr Attribute) []*sources.OCSPBinary

	// IndividualContentReferences returns the covered references of an
	// individual-data-objects timestamp.
	IndividualContentReferences(attr Attribute) []Reference

	// ArchiveSubKindOf returns the archive profile of an archive-timestamp
	// attribute.
	ArchiveSubKindOf(attr Attribute) ArchiveSubKind

	// SignedDataReferences returns the dialect-specific signed-data
	// references an archive token additionally covers.
	SignedDataReferences(t *Token) []Reference

	// SignatureSignedDataReferences returns the references to the
	// signature's own SignedData material, covered by external archive
	// timestamps.
	SignatureSignedDataReferences() []Reference
}

// DataBuilder rebuilds, per timestamp kind, the exact octet stream the
// timestamp was computed over. A rebuild failure yields an empty document.
type DataBuilder interface {
	ContentTimestampData(t *Token) []byte
	SignatureTimestampData(t *Token) []byte
	TimestampX1Data(t *Token) []byte
	TimestampX2Data(t *Token) []byte
	ArchiveTimestampData(t *Token) []byte
}

// Dialect bundles the classifier, the extractors and the data builder of
// one signature format.
type Dialect interface {
	Classifier
	Extractor
	DataBuilder
}
