// Package xades implements the XAdES realisation of the timestamp dialect.
// Attributes are the property elements of the QualifyingProperties tree,
// traversed in document order; timestamped data is rebuilt through XML
// canonicalization.
package xades

import (
	"crypto"
	"encoding/base64"
	"errors"
	"strings"
	"sync"

	"github.com/beevik/etree"

	"github.com/LuisAnazgo/dss/sign/validation/identifier"
	"github.com/LuisAnazgo/dss/sign/validation/sources"
	"github.com/LuisAnazgo/dss/sign/validation/timestamp"
)

// Namespaces of the XAdES property sets.
const (
	NamespaceXMLDSig  = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES132 = "http://uri.etsi.org/01903/v1.3.2#"
	NamespaceXAdES141 = "http://uri.etsi.org/01903/v1.4.1#"
)

// Digest method URIs (xmldsig / xmlenc).
const (
	URIDigestSHA1   = "http://www.w3.org/2000/09/xmldsig#sha1"
	URIDigestSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
	URIDigestSHA384 = "http://www.w3.org/2001/04/xmldsig-more#sha384"
	URIDigestSHA512 = "http://www.w3.org/2001/04/xmlenc#sha512"
)

// Common errors
var (
	ErrNoSignatureElement    = errors.New("no ds:Signature element found")
	ErrNoQualifyingProps     = errors.New("no QualifyingProperties element found")
	ErrNoTimestampValue      = errors.New("element carries no EncapsulatedTimeStamp")
	ErrWrongAttribute        = errors.New("attribute is not an XML element")
	ErrMalformedEncapsulated = errors.New("malformed encapsulated value")
)

// Dialect classifies and extracts the timestamp material of one XAdES
// signature. Attributes handed to it are *etree.Element values from the
// signature's property containers.
type Dialect struct {
	signature  *etree.Element
	qualifying *etree.Element

	scopes []timestamp.SignatureScope

	mu      sync.Mutex
	tokenEl map[identifier.Identifier]*etree.Element
}

// New creates a dialect over a parsed ds:Signature element.
func New(signature *etree.Element) (*Dialect, error) {
	if signature == nil {
		return nil, ErrNoSignatureElement
	}
	qualifying := findDescendant(signature, NamespaceXAdES132, "QualifyingProperties")
	if qualifying == nil {
		return nil, ErrNoQualifyingProps
	}
	return &Dialect{
		signature:  signature,
		qualifying: qualifying,
		tokenEl:    make(map[identifier.Identifier]*etree.Element),
	}, nil
}

// Parse locates the ds:Signature element of an XML document and creates a
// dialect over it.
func Parse(data []byte) (*Dialect, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, ErrNoSignatureElement
	}
	sig := root
	if !(elementIs(root, NamespaceXMLDSig, "Signature")) {
		sig = findDescendant(root, NamespaceXMLDSig, "Signature")
	}
	if sig == nil {
		return nil, ErrNoSignatureElement
	}
	return New(sig)
}

// NewSignatureContext assembles the core's view of the signature.
func (d *Dialect) NewSignatureContext() timestamp.SignatureContext {
	certSource := sources.NewCertificateSource()
	crlSource := sources.NewCRLSource()
	ocspSource := sources.NewOCSPSource()

	// KeyInfo certificates; the one matching the SigningCertificate digest
	// is the signing certificate, the first one when no match is declared.
	signingDigests := d.signingCertificateDigests()
	keyInfoCerts := d.keyInfoCertificates()
	for i, token := range keyInfoCerts {
		isSigning := false
		for _, digest := range signingDigests {
			if token.MatchesDigest(digest) {
				isSigning = true
				break
			}
		}
		if isSigning || (len(signingDigests) == 0 && i == 0) {
			certSource.AddSigning(token)
		} else {
			certSource.Add(token)
		}
	}

	// Declared refs and encapsulated revocation values belong to the
	// signature's own sources.
	for _, el := range d.unsignedPropertyElements() {
		switch {
		case d.IsCompleteCertificateRef(el), d.IsAttributeCertificateRef(el):
			for _, digest := range d.CertificateRefDigests(el) {
				certSource.AddRef(sources.NewCertificateRef(digest))
			}
		case d.IsCompleteRevocationRef(el), d.IsAttributeRevocationRef(el):
			for _, digest := range d.RevocationRefCRLDigests(el) {
				crlSource.AddRef(sources.NewCRLRef(digest))
			}
			for _, digest := range d.RevocationRefOCSPDigests(el) {
				ocspSource.AddRef(sources.NewOCSPRef(digest))
			}
		case d.IsRevocationValues(el):
			for _, crl := range d.EncapsulatedCRLs(el) {
				crlSource.Add(crl)
			}
			for _, resp := range d.EncapsulatedOCSPs(el) {
				ocspSource.Add(resp)
			}
		}
	}

	d.scopes = d.signatureScopes()

	return timestamp.SignatureContext{
		SignatureID:           d.signatureID(),
		Scopes:                d.scopes,
		SignedAttributes:      elementAttributes(d.signedPropertyElements()),
		UnsignedAttributes:    elementAttributes(d.unsignedPropertyElements()),
		HasUnsignedProperties: d.unsignedProperties() != nil,
		CertificateSource:     certSource,
		CRLSource:             crlSource,
		OCSPSource:            ocspSource,
	}
}

// signatureID derives the signature identity from the decoded signature
// value.
func (d *Dialect) signatureID() identifier.Identifier {
	if value := d.signatureValueBytes(); value != nil {
		return identifier.ForEncapsulated(value)
	}
	return identifier.ForEncapsulated([]byte(d.signature.GetPath()))
}

func (d *Dialect) signatureValueBytes() []byte {
	el := findChild(d.signature, NamespaceXMLDSig, "SignatureValue")
	if el == nil {
		return nil
	}
	value, err := base64.StdEncoding.DecodeString(strings.TrimSpace(el.Text()))
	if err != nil {
		return nil
	}
	return value
}

// signatureScopes derives one scope per ds:Reference of the SignedInfo,
// skipping the reference to the SignedProperties themselves.
func (d *Dialect) signatureScopes() []timestamp.SignatureScope {
	signedInfo := findChild(d.signature, NamespaceXMLDSig, "SignedInfo")
	if signedInfo == nil {
		return nil
	}
	var scopes []timestamp.SignatureScope
	for _, ref := range childElements(signedInfo, NamespaceXMLDSig, "Reference") {
		if strings.HasSuffix(ref.SelectAttrValue("Type", ""), "SignedProperties") {
			continue
		}
		digestEl := findChild(ref, NamespaceXMLDSig, "DigestValue")
		if digestEl == nil {
			continue
		}
		digest, err := base64.StdEncoding.DecodeString(strings.TrimSpace(digestEl.Text()))
		if err != nil {
			continue
		}
		name := ref.SelectAttrValue("Id", "")
		if name == "" {
			name = strings.TrimPrefix(ref.SelectAttrValue("URI", ""), "#")
		}
		scopes = append(scopes, timestamp.SignatureScope{
			ID:   identifier.ForEncapsulated(digest),
			Name: name,
		})
	}
	return scopes
}

// signingCertificateDigests returns the CertDigest entries of the
// SigningCertificate signed property.
func (d *Dialect) signingCertificateDigests() []identifier.Digest {
	signing := findDescendant(d.qualifying, NamespaceXAdES132, "SigningCertificate")
	if signing == nil {
		return nil
	}
	var digests []identifier.Digest
	for _, certEl := range childElements(signing, NamespaceXAdES132, "Cert") {
		certDigest := findChild(certEl, NamespaceXAdES132, "CertDigest")
		if digest, ok := digestFromElement(certDigest); ok {
			digests = append(digests, digest)
		}
	}
	return digests
}

// keyInfoCertificates returns the certificates of the KeyInfo element.
func (d *Dialect) keyInfoCertificates() []*sources.CertificateToken {
	keyInfo := findChild(d.signature, NamespaceXMLDSig, "KeyInfo")
	if keyInfo == nil {
		return nil
	}
	var out []*sources.CertificateToken
	for _, el := range findDescendants(keyInfo, NamespaceXMLDSig, "X509Certificate") {
		if cert, ok := decodeCertificate(el.Text()); ok {
			out = append(out, cert)
		}
	}
	return out
}

// signedPropertyElements returns the signed property elements in document
// order.
func (d *Dialect) signedPropertyElements() []*etree.Element {
	props := findChild(d.qualifying, NamespaceXAdES132, "SignedProperties")
	if props == nil {
		return nil
	}
	var out []*etree.Element
	for _, container := range props.ChildElements() {
		out = append(out, container.ChildElements()...)
	}
	return out
}

// unsignedProperties returns the UnsignedSignatureProperties container.
func (d *Dialect) unsignedProperties() *etree.Element {
	props := findChild(d.qualifying, NamespaceXAdES132, "UnsignedProperties")
	if props == nil {
		return nil
	}
	return findChild(props, NamespaceXAdES132, "UnsignedSignatureProperties")
}

// unsignedPropertyElements returns the unsigned signature property elements
// in document order.
func (d *Dialect) unsignedPropertyElements() []*etree.Element {
	container := d.unsignedProperties()
	if container == nil {
		return nil
	}
	return container.ChildElements()
}

func elementAttributes(els []*etree.Element) []timestamp.Attribute {
	out := make([]timestamp.Attribute, 0, len(els))
	for _, el := range els {
		out = append(out, el)
	}
	return out
}

func asElement(attr timestamp.Attribute) *etree.Element {
	el, _ := attr.(*etree.Element)
	return el
}

func elementIs(el *etree.Element, namespace, local string) bool {
	return el != nil && el.Tag == local && el.NamespaceURI() == namespace
}

func attrIs(attr timestamp.Attribute, namespace, local string) bool {
	return elementIs(asElement(attr), namespace, local)
}

// IsContentTimestamp is CAdES-only; never matches in XAdES.
func (d *Dialect) IsContentTimestamp(timestamp.Attribute) bool { return false }

// IsAllDataObjectsTimestamp reports an AllDataObjectsTimeStamp element.
func (d *Dialect) IsAllDataObjectsTimestamp(attr timestamp.Attribute) bool {
	return attrIs(attr, NamespaceXAdES132, "AllDataObjectsTimeStamp")
}

// IsIndividualDataObjectsTimestamp reports an
// IndividualDataObjectsTimeStamp element.
func (d *Dialect) IsIndividualDataObjectsTimestamp(attr timestamp.Attribute) bool {
	return attrIs(attr, NamespaceXAdES132, "IndividualDataObjectsTimeStamp")
}

// IsSignatureTimestamp reports a SignatureTimeStamp element.
func (d *Dialect) IsSignatureTimestamp(attr timestamp.Attribute) bool {
	return attrIs(attr, NamespaceXAdES132, "SignatureTimeStamp")
}

// IsCompleteCertificateRef reports a CompleteCertificateRefs element.
func (d *Dialect) IsCompleteCertificateRef(attr timestamp.Attribute) bool {
	return attrIs(attr, NamespaceXAdES132, "CompleteCertificateRefs")
}

// IsAttributeCertificateRef reports an AttributeCertificateRefs element.
func (d *Dialect) IsAttributeCertificateRef(attr timestamp.Attribute) bool {
	return attrIs(attr, NamespaceXAdES132, "AttributeCertificateRefs")
}

// IsCompleteRevocationRef reports a CompleteRevocationRefs element.
func (d *Dialect) IsCompleteRevocationRef(attr timestamp.Attribute) bool {
	return attrIs(attr, NamespaceXAdES132, "CompleteRevocationRefs")
}

// IsAttributeRevocationRef reports an AttributeRevocationRefs element.
func (d *Dialect) IsAttributeRevocationRef(attr timestamp.Attribute) bool {
	return attrIs(attr, NamespaceXAdES132, "AttributeRevocationRefs")
}

// IsRefsOnlyTimestamp reports a RefsOnlyTimeStamp element.
func (d *Dialect) IsRefsOnlyTimestamp(attr timestamp.Attribute) bool {
	return attrIs(attr, NamespaceXAdES132, "RefsOnlyTimeStamp")
}

// IsSigAndRefsTimestamp reports a SigAndRefsTimeStamp element.
func (d *Dialect) IsSigAndRefsTimestamp(attr timestamp.Attribute) bool {
	return attrIs(attr, NamespaceXAdES132, "SigAndRefsTimeStamp")
}

// IsCertificateValues reports a CertificateValues element.
func (d *Dialect) IsCertificateValues(attr timestamp.Attribute) bool {
	return attrIs(attr, NamespaceXAdES132, "CertificateValues")
}

// IsRevocationValues reports a RevocationValues element.
func (d *Dialect) IsRevocationValues(attr timestamp.Attribute) bool {
	return attrIs(attr, NamespaceXAdES132, "RevocationValues")
}

// IsArchiveTimestamp reports an ArchiveTimeStamp element of either
// namespace generation.
func (d *Dialect) IsArchiveTimestamp(attr timestamp.Attribute) bool {
	return attrIs(attr, NamespaceXAdES132, "ArchiveTimeStamp") ||
		attrIs(attr, NamespaceXAdES141, "ArchiveTimeStamp")
}

// IsTimeStampValidationData reports a TimeStampValidationData element
// (XAdES 1.4.1).
func (d *Dialect) IsTimeStampValidationData(attr timestamp.Attribute) bool {
	return attrIs(attr, NamespaceXAdES141, "TimeStampValidationData")
}

// MakeTimestampToken decodes the EncapsulatedTimeStamp of the element.
func (d *Dialect) MakeTimestampToken(attr timestamp.Attribute, kind timestamp.Kind, refs []timestamp.Reference) (*timestamp.Token, error) {
	el := asElement(attr)
	if el == nil {
		return nil, ErrWrongAttribute
	}
	encapsulated := findChild(el, NamespaceXAdES132, "EncapsulatedTimeStamp")
	if encapsulated == nil {
		encapsulated = findChild(el, NamespaceXAdES141, "EncapsulatedTimeStamp")
	}
	if encapsulated == nil {
		return nil, ErrNoTimestampValue
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encapsulated.Text()))
	if err != nil {
		return nil, ErrMalformedEncapsulated
	}
	token, err := timestamp.NewToken(raw, kind, refs)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.tokenEl[token.ID()] = el
	d.mu.Unlock()
	return token, nil
}

// CertificateRefDigests returns the CertDigest digests of a certificate
// refs element.
func (d *Dialect) CertificateRefDigests(attr timestamp.Attribute) []identifier.Digest {
	el := asElement(attr)
	if el == nil {
		return nil
	}
	var digests []identifier.Digest
	for _, certEl := range findDescendants(el, NamespaceXAdES132, "Cert") {
		certDigest := findChild(certEl, NamespaceXAdES132, "CertDigest")
		if digest, ok := digestFromElement(certDigest); ok {
			digests = append(digests, digest)
		}
	}
	return digests
}

// RevocationRefCRLDigests returns the CRLRef digests of a revocation refs
// element.
func (d *Dialect) RevocationRefCRLDigests(attr timestamp.Attribute) []identifier.Digest {
	return d.refDigests(attr, "CRLRef")
}

// RevocationRefOCSPDigests returns the OCSPRef digests of a revocation
// refs element.
func (d *Dialect) RevocationRefOCSPDigests(attr timestamp.Attribute) []identifier.Digest {
	return d.refDigests(attr, "OCSPRef")
}

func (d *Dialect) refDigests(attr timestamp.Attribute, local string) []identifier.Digest {
	el := asElement(attr)
	if el == nil {
		return nil
	}
	var digests []identifier.Digest
	for _, refEl := range findDescendants(el, NamespaceXAdES132, local) {
		digestEl := findChild(refEl, NamespaceXAdES132, "DigestAlgAndValue")
		if digest, ok := digestFromElement(digestEl); ok {
			digests = append(digests, digest)
		}
	}
	return digests
}

// EncapsulatedCertificates returns the identifiers of the
// EncapsulatedX509Certificate values of the element.
func (d *Dialect) EncapsulatedCertificates(attr timestamp.Attribute) []identifier.Identifier {
	el := asElement(attr)
	if el == nil {
		return nil
	}
	var ids []identifier.Identifier
	for _, certEl := range findEncapsulated(el, "EncapsulatedX509Certificate") {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(certEl.Text()))
		if err != nil {
			continue
		}
		ids = append(ids, identifier.ForEncapsulated(raw))
	}
	return ids
}

// EncapsulatedCRLs returns the EncapsulatedCRLValue binaries of the
// element.
func (d *Dialect) EncapsulatedCRLs(attr timestamp.Attribute) []*sources.CRLBinary {
	el := asElement(attr)
	if el == nil {
		return nil
	}
	var out []*sources.CRLBinary
	for _, crlEl := range findEncapsulated(el, "EncapsulatedCRLValue") {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(crlEl.Text()))
		if err != nil {
			continue
		}
		out = append(out, sources.NewCRLBinary(raw))
	}
	return out
}

// EncapsulatedOCSPs returns the EncapsulatedOCSPValue binaries of the
// element.
func (d *Dialect) EncapsulatedOCSPs(attr timestamp.Attribute) []*sources.OCSPBinary {
	el := asElement(attr)
	if el == nil {
		return nil
	}
	var out []*sources.OCSPBinary
	for _, ocspEl := range findEncapsulated(el, "EncapsulatedOCSPValue") {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ocspEl.Text()))
		if err != nil {
			continue
		}
		out = append(out, sources.NewOCSPBinary(raw))
	}
	return out
}

// IndividualContentReferences maps the Include URIs of an
// IndividualDataObjectsTimeStamp to the matching signature scopes.
func (d *Dialect) IndividualContentReferences(attr timestamp.Attribute) []timestamp.Reference {
	el := asElement(attr)
	if el == nil {
		return nil
	}
	var refs []timestamp.Reference
	for _, include := range childElements(el, NamespaceXAdES132, "Include") {
		uri := strings.TrimPrefix(include.SelectAttrValue("URI", ""), "#")
		for _, scope := range d.scopes {
			if scope.Name == uri {
				refs = append(refs, timestamp.NewReference(scope.ID, timestamp.ObjectSignedData))
			}
		}
	}
	return refs
}

// ArchiveSubKindOf returns the namespace generation of an ArchiveTimeStamp.
func (d *Dialect) ArchiveSubKindOf(attr timestamp.Attribute) timestamp.ArchiveSubKind {
	el := asElement(attr)
	if el == nil {
		return timestamp.ArchiveSubKindNone
	}
	if el.NamespaceURI() == NamespaceXAdES141 {
		return timestamp.ArchiveXAdES141
	}
	return timestamp.ArchiveXAdES
}

// SignedDataReferences returns the signed-data scope references an archive
// timestamp additionally covers.
func (d *Dialect) SignedDataReferences(*timestamp.Token) []timestamp.Reference {
	return d.scopeReferences()
}

// SignatureSignedDataReferences returns the signed-data scope references
// covered by external archive timestamps.
func (d *Dialect) SignatureSignedDataReferences() []timestamp.Reference {
	return d.scopeReferences()
}

func (d *Dialect) scopeReferences() []timestamp.Reference {
	var refs []timestamp.Reference
	for _, scope := range d.scopes {
		refs = append(refs, timestamp.NewReference(scope.ID, timestamp.ObjectSignedData))
	}
	return refs
}

// findEncapsulated searches the element subtree for encapsulated PKI data
// of the given local name, in either XAdES namespace. This serves both the
// plain values elements and TimeStampValidationData.
func findEncapsulated(el *etree.Element, local string) []*etree.Element {
	var out []*etree.Element
	for _, child := range findDescendants(el, NamespaceXAdES132, local) {
		out = append(out, child)
	}
	for _, child := range findDescendants(el, NamespaceXAdES141, local) {
		out = append(out, child)
	}
	return out
}

// digestFromElement reads DigestMethod and DigestValue children.
func digestFromElement(el *etree.Element) (identifier.Digest, bool) {
	if el == nil {
		return identifier.Digest{}, false
	}
	method := findChild(el, NamespaceXMLDSig, "DigestMethod")
	value := findChild(el, NamespaceXMLDSig, "DigestValue")
	if method == nil || value == nil {
		return identifier.Digest{}, false
	}
	alg := hashFromURI(method.SelectAttrValue("Algorithm", ""))
	if alg == 0 {
		return identifier.Digest{}, false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value.Text()))
	if err != nil || len(raw) == 0 {
		return identifier.Digest{}, false
	}
	return identifier.NewDigest(alg, raw), true
}

func hashFromURI(uri string) crypto.Hash {
	switch uri {
	case URIDigestSHA1:
		return crypto.SHA1
	case URIDigestSHA256:
		return crypto.SHA256
	case URIDigestSHA384:
		return crypto.SHA384
	case URIDigestSHA512:
		return crypto.SHA512
	default:
		return 0
	}
}

func decodeCertificate(text string) (*sources.CertificateToken, bool) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, false
	}
	cert, err := parseCertificate(raw)
	if err != nil {
		return nil, false
	}
	return sources.NewCertificateToken(cert), true
}

// Element tree helpers. encoding/xml struct decoding discards the document
// order of siblings, which the builder depends on, so traversal stays on
// etree.

func findChild(el *etree.Element, namespace, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, child := range el.ChildElements() {
		if elementIs(child, namespace, local) {
			return child
		}
	}
	return nil
}

func childElements(el *etree.Element, namespace, local string) []*etree.Element {
	if el == nil {
		return nil
	}
	var out []*etree.Element
	for _, child := range el.ChildElements() {
		if elementIs(child, namespace, local) {
			out = append(out, child)
		}
	}
	return out
}

func findDescendant(el *etree.Element, namespace, local string) *etree.Element {
	for _, child := range el.ChildElements() {
		if elementIs(child, namespace, local) {
			return child
		}
		if found := findDescendant(child, namespace, local); found != nil {
			return found
		}
	}
	return nil
}

func findDescendants(el *etree.Element, namespace, local string) []*etree.Element {
	var out []*etree.Element
	for _, child := range el.ChildElements() {
		if elementIs(child, namespace, local) {
			out = append(out, child)
		}
		out = append(out, findDescendants(child, namespace, local)...)
	}
	return out
}
