// Package cms provides the parse-side CMS (RFC 5652) model used when
// validating CAdES signatures.
package cms

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"

	"github.com/LuisAnazgo/dss/sign/attributes"
)

// Common errors
var (
	ErrInvalidCMS      = errors.New("invalid CMS structure")
	ErrNotSignedData   = errors.New("content is not SignedData")
	ErrNoSignerInfo    = errors.New("no signer info present")
	ErrInvalidSignerID = errors.New("invalid signer identifier")
)

// ContentInfo represents CMS ContentInfo.
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"tag:0,optional"`
}

// EncapsulatedContentInfo represents the signed content.
type EncapsulatedContentInfo struct {
	EContentType asn1.ObjectIdentifier
	EContent     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

// IssuerAndSerialNumber identifies a signer certificate.
type IssuerAndSerialNumber struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

// SignerInfo represents one signer of a SignedData. The signed and
// unsigned attribute sets are kept raw so their encoding order survives.
type SignerInfo struct {
	Version            int
	SID                IssuerAndSerialNumber
	DigestAlgorithm    attributes.AlgorithmIdentifier
	SignedAttrsRaw     asn1.RawValue `asn1:"optional,tag:0"`
	SignatureAlgorithm attributes.AlgorithmIdentifier
	Signature          []byte
	UnsignedAttrsRaw   asn1.RawValue `asn1:"optional,tag:1"`
}

// SignedAttributes returns the signed attributes in encoding order.
func (si *SignerInfo) SignedAttributes() attributes.CMSAttributes {
	return parseAttributeSet(si.SignedAttrsRaw)
}

// UnsignedAttributes returns the unsigned attributes in encoding order.
func (si *SignerInfo) UnsignedAttributes() attributes.CMSAttributes {
	return parseAttributeSet(si.UnsignedAttrsRaw)
}

// HasUnsignedAttributes reports whether the unsigned attribute set is
// present at all.
func (si *SignerInfo) HasUnsignedAttributes() bool {
	return len(si.UnsignedAttrsRaw.Bytes) > 0 || len(si.UnsignedAttrsRaw.FullBytes) > 0
}

// SignedData represents a parsed CMS SignedData.
type SignedData struct {
	Version          int
	DigestAlgorithms asn1.RawValue
	EncapContentInfo EncapsulatedContentInfo
	CertificatesRaw  asn1.RawValue `asn1:"optional,implicit,tag:0"`
	CRLsRaw          asn1.RawValue `asn1:"optional,implicit,tag:1"`
	SignerInfos      []SignerInfo  `asn1:"set"`
}

// ParseSignedData parses the DER encoding of a CMS signature.
func ParseSignedData(data []byte) (*SignedData, error) {
	var contentInfo ContentInfo
	if _, err := asn1.Unmarshal(data, &contentInfo); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCMS, err)
	}
	if !contentInfo.ContentType.Equal(attributes.OIDSignedData) {
		return nil, ErrNotSignedData
	}

	var sd SignedData
	if _, err := asn1.Unmarshal(contentInfo.Content.Bytes, &sd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCMS, err)
	}
	if len(sd.SignerInfos) == 0 {
		return nil, ErrNoSignerInfo
	}
	return &sd, nil
}

// Content returns the encapsulated content octets, or nil for a detached
// signature.
func (sd *SignedData) Content() []byte {
	raw := sd.EncapContentInfo.EContent.Bytes
	if len(raw) == 0 {
		return nil
	}
	var octets []byte
	if _, err := asn1.Unmarshal(raw, &octets); err != nil {
		return nil
	}
	return octets
}

// Certificates returns the parseable certificates of the SignedData, in
// encoding order. Unparseable entries are skipped.
func (sd *SignedData) Certificates() []*x509.Certificate {
	var out []*x509.Certificate
	for _, raw := range rawCollectionValues(sd.CertificatesRaw) {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			continue
		}
		out = append(out, cert)
	}
	return out
}

// CertificateRaws returns the raw encodings of the certificate entries.
func (sd *SignedData) CertificateRaws() [][]byte {
	return rawCollectionValues(sd.CertificatesRaw)
}

// CRLs returns the raw encodings of the CRL entries of the SignedData.
func (sd *SignedData) CRLs() [][]byte {
	return rawCollectionValues(sd.CRLsRaw)
}

// SignerCertificate returns the certificate matching the signer's issuer
// and serial, or nil when it is not carried in the SignedData.
func (sd *SignedData) SignerCertificate(si *SignerInfo) *x509.Certificate {
	if si.SID.SerialNumber == nil {
		return nil
	}
	for _, cert := range sd.Certificates() {
		if cert.SerialNumber.Cmp(si.SID.SerialNumber) == 0 &&
			bytes.Equal(cert.RawIssuer, si.SID.Issuer.FullBytes) {
			return cert
		}
	}
	return nil
}

// parseAttributeSet decodes a raw attribute SET, preserving encoding order.
// A malformed tail is dropped.
func parseAttributeSet(raw asn1.RawValue) attributes.CMSAttributes {
	var out attributes.CMSAttributes
	rest := raw.Bytes
	for len(rest) > 0 {
		var attr attributes.CMSAttribute
		tail, err := asn1.Unmarshal(rest, &attr)
		if err != nil {
			break
		}
		out = append(out, attr)
		rest = tail
	}
	return out
}

// rawCollectionValues splits an implicitly tagged collection into the DER
// encodings of its elements.
func rawCollectionValues(raw asn1.RawValue) [][]byte {
	var out [][]byte
	rest := raw.Bytes
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
