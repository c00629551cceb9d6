package xades

import (
	"bytes"
	"crypto/x509"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/LuisAnazgo/dss/sign/validation/timestamp"
)

func parseCertificate(raw []byte) (*x509.Certificate, error) {
	return x509.ParseCertificate(raw)
}

// canonicalize serialises an element with inclusive C14N 1.0. A nil
// element or a canonicalization failure contributes nothing to the rebuilt
// document.
func canonicalize(buf *bytes.Buffer, el *etree.Element) {
	if el == nil {
		return
	}
	data, err := dsig.MakeC14N10RecCanonicalizer().Canonicalize(el)
	if err != nil {
		return
	}
	buf.Write(data)
}

// ContentTimestampData is CAdES-only; XAdES content coverage goes through
// the data-object timestamps, rebuilt as the canonicalized ds:Object
// elements of the signature.
func (d *Dialect) ContentTimestampData(*timestamp.Token) []byte {
	var buf bytes.Buffer
	for _, obj := range childElements(d.signature, NamespaceXMLDSig, "Object") {
		if findDescendant(obj, NamespaceXAdES132, "QualifyingProperties") != nil {
			continue
		}
		canonicalize(&buf, obj)
	}
	return buf.Bytes()
}

// SignatureTimestampData rebuilds the canonicalized ds:SignatureValue.
func (d *Dialect) SignatureTimestampData(*timestamp.Token) []byte {
	var buf bytes.Buffer
	canonicalize(&buf, findChild(d.signature, NamespaceXMLDSig, "SignatureValue"))
	return buf.Bytes()
}

// TimestampX1Data rebuilds the sig-and-refs octets: the signature value,
// every SignatureTimeStamp and the complete certificate and revocation
// references, canonicalized in document order.
func (d *Dialect) TimestampX1Data(*timestamp.Token) []byte {
	var buf bytes.Buffer
	canonicalize(&buf, findChild(d.signature, NamespaceXMLDSig, "SignatureValue"))
	for _, el := range d.unsignedPropertyElements() {
		if elementIs(el, NamespaceXAdES132, "SignatureTimeStamp") {
			canonicalize(&buf, el)
		}
	}
	d.writeRefElements(&buf)
	return buf.Bytes()
}

// TimestampX2Data rebuilds the refs-only octets: the complete certificate
// and revocation references, canonicalized in document order.
func (d *Dialect) TimestampX2Data(*timestamp.Token) []byte {
	var buf bytes.Buffer
	d.writeRefElements(&buf)
	return buf.Bytes()
}

func (d *Dialect) writeRefElements(buf *bytes.Buffer) {
	for _, el := range d.unsignedPropertyElements() {
		switch {
		case elementIs(el, NamespaceXAdES132, "CompleteCertificateRefs"),
			elementIs(el, NamespaceXAdES132, "CompleteRevocationRefs"):
			canonicalize(buf, el)
		}
	}
}

// ArchiveTimestampData rebuilds the archive octets: the references'
// objects, the SignedInfo, the signature value, the KeyInfo and every
// unsigned property preceding the archive timestamp itself, canonicalized
// in document order.
func (d *Dialect) ArchiveTimestampData(t *timestamp.Token) []byte {
	d.mu.Lock()
	own := d.tokenEl[t.ID()]
	d.mu.Unlock()

	var buf bytes.Buffer
	for _, obj := range childElements(d.signature, NamespaceXMLDSig, "Object") {
		if findDescendant(obj, NamespaceXAdES132, "QualifyingProperties") != nil {
			continue
		}
		canonicalize(&buf, obj)
	}
	canonicalize(&buf, findChild(d.signature, NamespaceXMLDSig, "SignedInfo"))
	canonicalize(&buf, findChild(d.signature, NamespaceXMLDSig, "SignatureValue"))
	canonicalize(&buf, findChild(d.signature, NamespaceXMLDSig, "KeyInfo"))

	for _, el := range d.unsignedPropertyElements() {
		if el == own {
			break
		}
		canonicalize(&buf, el)
	}
	return buf.Bytes()
}
