// Package cades implements the CAdES realisation of the timestamp dialect:
// OID-based attribute classification, ASN.1 material extraction and
// timestamped-data reconstruction over a parsed CMS signature.
package cades

import (
	"crypto"
	"encoding/asn1"
	"errors"
	"fmt"
	"sync"

	"github.com/LuisAnazgo/dss/sign/attributes"
	"github.com/LuisAnazgo/dss/sign/cms"
	"github.com/LuisAnazgo/dss/sign/timestamps"
	"github.com/LuisAnazgo/dss/sign/validation/identifier"
	"github.com/LuisAnazgo/dss/sign/validation/sources"
	"github.com/LuisAnazgo/dss/sign/validation/timestamp"
)

// Common errors
var (
	ErrNoTimestampValue = errors.New("attribute carries no timestamp value")
	ErrWrongAttribute   = errors.New("attribute is not a CMS attribute")
)

// Dialect classifies and extracts the timestamp material of one CAdES
// signer. Attributes handed to it must be *attributes.CMSAttribute values
// from the same SignerInfo.
type Dialect struct {
	signedData *cms.SignedData
	signerInfo *cms.SignerInfo
	content    []byte

	mu        sync.Mutex
	tokenAttr map[identifier.Identifier]*attributes.CMSAttribute
}

// New creates a dialect over one signer of a parsed SignedData. For
// detached signatures the signed content must be supplied explicitly;
// otherwise the encapsulated content is used.
func New(sd *cms.SignedData, si *cms.SignerInfo, detachedContent []byte) *Dialect {
	content := detachedContent
	if content == nil {
		content = sd.Content()
	}
	return &Dialect{
		signedData: sd,
		signerInfo: si,
		content:    content,
		tokenAttr:  make(map[identifier.Identifier]*attributes.CMSAttribute),
	}
}

// NewSignatureContext assembles the core's view of the signature: stable
// identifiers, attribute lists in encoding order and the validation
// material found in the SignedData and in the signer's unsigned attributes.
func (d *Dialect) NewSignatureContext() timestamp.SignatureContext {
	si := d.signerInfo

	certSource := sources.NewCertificateSource()
	for _, cert := range d.signedData.Certificates() {
		token := sources.NewCertificateToken(cert)
		if signer := d.signedData.SignerCertificate(si); signer != nil && signer.SerialNumber.Cmp(cert.SerialNumber) == 0 {
			certSource.AddSigning(token)
		} else {
			certSource.Add(token)
		}
	}

	crlSource := sources.NewCRLSource()
	for _, crl := range d.signedData.CRLs() {
		crlSource.Add(sources.NewCRLBinary(crl))
	}
	ocspSource := sources.NewOCSPSource()

	// Encapsulated revocation values and declared refs are part of the
	// signature's own sources.
	for _, attr := range si.UnsignedAttributes() {
		a := attr
		switch {
		case a.Type.Equal(attributes.OIDRevocationValues):
			for _, crl := range d.EncapsulatedCRLs(&a) {
				crlSource.Add(crl)
			}
			for _, resp := range d.EncapsulatedOCSPs(&a) {
				ocspSource.Add(resp)
			}
		case a.Type.Equal(attributes.OIDCertificateRefs), a.Type.Equal(attributes.OIDAttrCertificateRefs):
			for _, digest := range d.CertificateRefDigests(&a) {
				certSource.AddRef(sources.NewCertificateRef(digest))
			}
		case a.Type.Equal(attributes.OIDRevocationRefs), a.Type.Equal(attributes.OIDAttrRevocationRefs):
			for _, digest := range d.RevocationRefCRLDigests(&a) {
				crlSource.AddRef(sources.NewCRLRef(digest))
			}
			for _, digest := range d.RevocationRefOCSPDigests(&a) {
				ocspSource.AddRef(sources.NewOCSPRef(digest))
			}
		}
	}

	ctx := timestamp.SignatureContext{
		SignatureID:           identifier.ForEncapsulated(si.Signature),
		SignedAttributes:      attributeList(si.SignedAttributes()),
		UnsignedAttributes:    attributeList(si.UnsignedAttributes()),
		HasUnsignedProperties: si.HasUnsignedAttributes(),
		CertificateSource:     certSource,
		CRLSource:             crlSource,
		OCSPSource:            ocspSource,
	}

	if len(d.content) > 0 {
		ctx.Scopes = []timestamp.SignatureScope{{
			ID:   identifier.ForEncapsulated(d.content),
			Name: "full-signed-data",
		}}
	}

	return ctx
}

func attributeList(attrs attributes.CMSAttributes) []timestamp.Attribute {
	out := make([]timestamp.Attribute, 0, len(attrs))
	for i := range attrs {
		out = append(out, &attrs[i])
	}
	return out
}

func asCMSAttribute(attr timestamp.Attribute) *attributes.CMSAttribute {
	a, _ := attr.(*attributes.CMSAttribute)
	return a
}

func attrOIDIs(attr timestamp.Attribute, oids ...asn1.ObjectIdentifier) bool {
	a := asCMSAttribute(attr)
	if a == nil {
		return false
	}
	for _, oid := range oids {
		if a.Type.Equal(oid) {
			return true
		}
	}
	return false
}

// IsContentTimestamp reports an id-aa-ets-contentTimestamp attribute.
func (d *Dialect) IsContentTimestamp(attr timestamp.Attribute) bool {
	return attrOIDIs(attr, attributes.OIDContentTimeStamp)
}

// IsAllDataObjectsTimestamp is XAdES-only; never matches in CAdES.
func (d *Dialect) IsAllDataObjectsTimestamp(timestamp.Attribute) bool { return false }

// IsIndividualDataObjectsTimestamp is XAdES-only; never matches in CAdES.
func (d *Dialect) IsIndividualDataObjectsTimestamp(timestamp.Attribute) bool { return false }

// IsSignatureTimestamp reports an id-aa-signatureTimeStampToken attribute.
func (d *Dialect) IsSignatureTimestamp(attr timestamp.Attribute) bool {
	return attrOIDIs(attr, attributes.OIDSignatureTimeStampToken)
}

// IsCompleteCertificateRef reports an id-aa-ets-certificateRefs attribute.
func (d *Dialect) IsCompleteCertificateRef(attr timestamp.Attribute) bool {
	return attrOIDIs(attr, attributes.OIDCertificateRefs)
}

// IsAttributeCertificateRef reports an id-aa-ets-attrCertificateRefs
// attribute.
func (d *Dialect) IsAttributeCertificateRef(attr timestamp.Attribute) bool {
	return attrOIDIs(attr, attributes.OIDAttrCertificateRefs)
}

// IsCompleteRevocationRef reports an id-aa-ets-revocationRefs attribute.
func (d *Dialect) IsCompleteRevocationRef(attr timestamp.Attribute) bool {
	return attrOIDIs(attr, attributes.OIDRevocationRefs)
}

// IsAttributeRevocationRef reports an id-aa-ets-attrRevocationRefs
// attribute.
func (d *Dialect) IsAttributeRevocationRef(attr timestamp.Attribute) bool {
	return attrOIDIs(attr, attributes.OIDAttrRevocationRefs)
}

// IsRefsOnlyTimestamp reports an id-aa-ets-certCRLTimestamp attribute.
func (d *Dialect) IsRefsOnlyTimestamp(attr timestamp.Attribute) bool {
	return attrOIDIs(attr, attributes.OIDCertCRLTimeStamp)
}

// IsSigAndRefsTimestamp reports an id-aa-ets-escTimeStamp attribute.
func (d *Dialect) IsSigAndRefsTimestamp(attr timestamp.Attribute) bool {
	return attrOIDIs(attr, attributes.OIDEscTimeStamp)
}

// IsCertificateValues reports an id-aa-ets-certValues attribute.
func (d *Dialect) IsCertificateValues(attr timestamp.Attribute) bool {
	return attrOIDIs(attr, attributes.OIDCertValues)
}

// IsRevocationValues reports an id-aa-ets-revocationValues attribute.
func (d *Dialect) IsRevocationValues(attr timestamp.Attribute) bool {
	return attrOIDIs(attr, attributes.OIDRevocationValues)
}

// IsArchiveTimestamp reports an archive timestamp attribute of any of the
// three CAdES profiles.
func (d *Dialect) IsArchiveTimestamp(attr timestamp.Attribute) bool {
	return attrOIDIs(attr,
		attributes.OIDArchiveTimeStamp,
		attributes.OIDArchiveTimeStampV2,
		attributes.OIDArchiveTimeStampV3)
}

// IsTimeStampValidationData is XAdES-only; never matches in CAdES.
func (d *Dialect) IsTimeStampValidationData(timestamp.Attribute) bool { return false }

// MakeTimestampToken parses the encapsulated timestamp token carried by
// the attribute.
func (d *Dialect) MakeTimestampToken(attr timestamp.Attribute, kind timestamp.Kind, refs []timestamp.Reference) (*timestamp.Token, error) {
	a := asCMSAttribute(attr)
	if a == nil {
		return nil, ErrWrongAttribute
	}
	values := a.ValueBytes()
	if len(values) == 0 {
		return nil, ErrNoTimestampValue
	}
	token, err := timestamp.NewToken(values[0], kind, refs)
	if err != nil {
		return nil, fmt.Errorf("cannot parse timestamp attribute %v: %w", a.Type, err)
	}

	d.mu.Lock()
	d.tokenAttr[token.ID()] = a
	d.mu.Unlock()
	return token, nil
}

// CertificateRefDigests returns the digests of an
// id-aa-ets-certificateRefs attribute.
func (d *Dialect) CertificateRefDigests(attr timestamp.Attribute) []identifier.Digest {
	a := asCMSAttribute(attr)
	if a == nil {
		return nil
	}
	var digests []identifier.Digest
	for _, value := range a.ValueBytes() {
		var refs []attributes.OtherCertID
		if _, err := asn1.Unmarshal(value, &refs); err != nil {
			continue
		}
		for _, ref := range refs {
			if digest, ok := digestFromOtherHash(ref.OtherCertHash); ok {
				digests = append(digests, digest)
			}
		}
	}
	return digests
}

// RevocationRefCRLDigests returns the CRL digests of an
// id-aa-ets-revocationRefs attribute.
func (d *Dialect) RevocationRefCRLDigests(attr timestamp.Attribute) []identifier.Digest {
	var digests []identifier.Digest
	for _, ref := range d.revocationRefs(attr) {
		for _, crlID := range ref.CrlIDs {
			if digest, ok := digestFromOtherHash(crlID.CrlHash); ok {
				digests = append(digests, digest)
			}
		}
	}
	return digests
}

// RevocationRefOCSPDigests returns the OCSP digests of an
// id-aa-ets-revocationRefs attribute.
func (d *Dialect) RevocationRefOCSPDigests(attr timestamp.Attribute) []identifier.Digest {
	var digests []identifier.Digest
	for _, ref := range d.revocationRefs(attr) {
		for _, ocspID := range ref.OcspIDs {
			if digest, ok := digestFromOtherHash(ocspID.OcspRepHash); ok {
				digests = append(digests, digest)
			}
		}
	}
	return digests
}

func (d *Dialect) revocationRefs(attr timestamp.Attribute) []attributes.CrlOcspRef {
	a := asCMSAttribute(attr)
	if a == nil {
		return nil
	}
	var out []attributes.CrlOcspRef
	for _, value := range a.ValueBytes() {
		var refs []attributes.CrlOcspRef
		if _, err := asn1.Unmarshal(value, &refs); err != nil {
			continue
		}
		out = append(out, refs...)
	}
	return out
}

// EncapsulatedCertificates returns the identifiers of the certificates of
// an id-aa-ets-certValues attribute.
func (d *Dialect) EncapsulatedCertificates(attr timestamp.Attribute) []identifier.Identifier {
	a := asCMSAttribute(attr)
	if a == nil {
		return nil
	}
	var ids []identifier.Identifier
	for _, value := range a.ValueBytes() {
		for _, raw := range rawSequenceElements(value) {
			ids = append(ids, identifier.ForEncapsulated(raw))
		}
	}
	return ids
}

// EncapsulatedCRLs returns the CRL binaries of an
// id-aa-ets-revocationValues attribute.
func (d *Dialect) EncapsulatedCRLs(attr timestamp.Attribute) []*sources.CRLBinary {
	var out []*sources.CRLBinary
	for _, values := range d.revocationValues(attr) {
		for _, crl := range values.CrlVals {
			out = append(out, sources.NewCRLBinary(crl.FullBytes))
		}
	}
	return out
}

// EncapsulatedOCSPs returns the OCSP binaries of an
// id-aa-ets-revocationValues attribute.
func (d *Dialect) EncapsulatedOCSPs(attr timestamp.Attribute) []*sources.OCSPBinary {
	var out []*sources.OCSPBinary
	for _, values := range d.revocationValues(attr) {
		for _, resp := range values.OcspVals {
			out = append(out, sources.NewOCSPBinary(resp.FullBytes))
		}
	}
	return out
}

func (d *Dialect) revocationValues(attr timestamp.Attribute) []attributes.RevocationValues {
	a := asCMSAttribute(attr)
	if a == nil {
		return nil
	}
	var out []attributes.RevocationValues
	for _, value := range a.ValueBytes() {
		var values attributes.RevocationValues
		if _, err := asn1.Unmarshal(value, &values); err != nil {
			continue
		}
		out = append(out, values)
	}
	return out
}

// IndividualContentReferences is XAdES-only; never used in CAdES.
func (d *Dialect) IndividualContentReferences(timestamp.Attribute) []timestamp.Reference {
	return nil
}

// ArchiveSubKindOf returns the CAdES archive profile of the attribute.
func (d *Dialect) ArchiveSubKindOf(attr timestamp.Attribute) timestamp.ArchiveSubKind {
	a := asCMSAttribute(attr)
	if a == nil {
		return timestamp.ArchiveSubKindNone
	}
	switch {
	case a.Type.Equal(attributes.OIDArchiveTimeStamp):
		return timestamp.ArchiveCAdES
	case a.Type.Equal(attributes.OIDArchiveTimeStampV2):
		return timestamp.ArchiveCAdESV2
	case a.Type.Equal(attributes.OIDArchiveTimeStampV3):
		return timestamp.ArchiveCAdESV3
	default:
		return timestamp.ArchiveSubKindNone
	}
}

// SignedDataReferences returns the references an archive timestamp covers
// beyond the accumulated set: the signed content and every certificate and
// CRL of the CMS SignedData.
func (d *Dialect) SignedDataReferences(*timestamp.Token) []timestamp.Reference {
	return d.SignatureSignedDataReferences()
}

// SignatureSignedDataReferences returns the references to the signature's
// own SignedData material.
func (d *Dialect) SignatureSignedDataReferences() []timestamp.Reference {
	var refs []timestamp.Reference
	if len(d.content) > 0 {
		refs = append(refs, timestamp.NewReference(identifier.ForEncapsulated(d.content), timestamp.ObjectSignedData))
	}
	for _, raw := range d.signedData.CertificateRaws() {
		refs = append(refs, timestamp.NewReference(identifier.ForEncapsulated(raw), timestamp.ObjectCertificate))
	}
	for _, crl := range d.signedData.CRLs() {
		refs = append(refs, timestamp.NewReference(identifier.ForEncapsulated(crl), timestamp.ObjectRevocation))
	}
	return refs
}

// digestFromOtherHash converts an OtherHashAlgAndValue into a Digest.
func digestFromOtherHash(h attributes.OtherHashAlgAndValue) (identifier.Digest, bool) {
	if len(h.HashValue) == 0 {
		return identifier.Digest{}, false
	}
	alg := timestamps.HashFromOID(h.HashAlgorithm.Algorithm)
	if alg == crypto.Hash(0) {
		// Bare OtherHash defaults to SHA-1 per RFC 5126.
		alg = crypto.SHA1
	}
	return identifier.NewDigest(alg, h.HashValue), true
}

// rawSequenceElements splits the DER encoding of a SEQUENCE into the
// encodings of its elements.
func rawSequenceElements(data []byte) [][]byte {
	var seq asn1.RawValue
	if _, err := asn1.Unmarshal(data, &seq); err != nil {
		return nil
	}
	var out [][]byte
	rest := seq.Bytes
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
