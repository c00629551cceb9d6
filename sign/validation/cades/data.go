package cades

import (
	"bytes"

	"github.com/LuisAnazgo/dss/sign/attributes"
	"github.com/LuisAnazgo/dss/sign/validation/timestamp"
)

// ContentTimestampData returns the signed content octets a content
// timestamp was computed over.
func (d *Dialect) ContentTimestampData(*timestamp.Token) []byte {
	return d.content
}

// SignatureTimestampData returns the signature value octets.
func (d *Dialect) SignatureTimestampData(*timestamp.Token) []byte {
	return d.signerInfo.Signature
}

// TimestampX1Data rebuilds the sig-and-refs octets: the signature value
// followed by the signature-timestamp attributes and the complete
// certificate and revocation references, in encoding order.
func (d *Dialect) TimestampX1Data(*timestamp.Token) []byte {
	var buf bytes.Buffer
	buf.Write(d.signerInfo.Signature)
	attrs := d.signerInfo.UnsignedAttributes()
	for _, a := range attrs.GetAll(attributes.OIDSignatureTimeStampToken) {
		buf.Write(a.Raw)
	}
	d.writeRefAttributes(&buf, attrs)
	return buf.Bytes()
}

// TimestampX2Data rebuilds the refs-only octets: the complete certificate
// and revocation references, in encoding order.
func (d *Dialect) TimestampX2Data(*timestamp.Token) []byte {
	var buf bytes.Buffer
	d.writeRefAttributes(&buf, d.signerInfo.UnsignedAttributes())
	return buf.Bytes()
}

func (d *Dialect) writeRefAttributes(buf *bytes.Buffer, attrs attributes.CMSAttributes) {
	for _, a := range attrs.GetAll(attributes.OIDCertificateRefs) {
		buf.Write(a.Raw)
	}
	for _, a := range attrs.GetAll(attributes.OIDRevocationRefs) {
		buf.Write(a.Raw)
	}
}

// ArchiveTimestampData rebuilds the archive-timestamp octets: the signed
// content, the SignedData certificates and CRLs, the signer's signed
// attributes and signature, and every unsigned attribute preceding the
// archive timestamp itself.
func (d *Dialect) ArchiveTimestampData(t *timestamp.Token) []byte {
	d.mu.Lock()
	own := d.tokenAttr[t.ID()]
	d.mu.Unlock()

	var buf bytes.Buffer
	buf.Write(d.content)
	for _, raw := range d.signedData.CertificateRaws() {
		buf.Write(raw)
	}
	for _, crl := range d.signedData.CRLs() {
		buf.Write(crl)
	}
	buf.Write(d.signerInfo.SignedAttrsRaw.FullBytes)
	buf.Write(d.signerInfo.Signature)

	for _, a := range d.signerInfo.UnsignedAttributes() {
		if own != nil && bytes.Equal(a.Raw, own.Raw) {
			break
		}
		buf.Write(a.Raw)
	}
	return buf.Bytes()
}
