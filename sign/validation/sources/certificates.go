// Package sources provides certificate and revocation material sources for
// advanced signature validation. A source holds the encapsulated values and
// the digest-only references found in one container (a signature or a
// timestamp token); list sources aggregate several of them while keeping
// insertion order and identity-based deduplication.
package sources

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"sync"

	"github.com/LuisAnazgo/dss/sign/validation/identifier"
)

// CertificateToken wraps a parsed X.509 certificate with its stable
// identifier and a per-algorithm digest cache.
type CertificateToken struct {
	id   identifier.Identifier
	cert *x509.Certificate

	mu      sync.Mutex
	digests map[crypto.Hash][]byte
}

// NewCertificateToken creates a token for a parsed certificate.
func NewCertificateToken(cert *x509.Certificate) *CertificateToken {
	return &CertificateToken{
		id:      identifier.ForEncapsulated(cert.Raw),
		cert:    cert,
		digests: make(map[crypto.Hash][]byte),
	}
}

// ID returns the stable identifier of the certificate.
func (t *CertificateToken) ID() identifier.Identifier {
	return t.id
}

// Certificate returns the underlying parsed certificate.
func (t *CertificateToken) Certificate() *x509.Certificate {
	return t.cert
}

// IsSelfSigned reports whether issuer and subject are the same entity.
func (t *CertificateToken) IsSelfSigned() bool {
	return bytes.Equal(t.cert.RawIssuer, t.cert.RawSubject)
}

// Digest returns the digest of the certificate encoding under alg,
// computing and caching it on first use.
func (t *CertificateToken) Digest(alg crypto.Hash) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d, ok := t.digests[alg]; ok {
		return d
	}
	h := alg.New()
	h.Write(t.cert.Raw)
	d := h.Sum(nil)
	t.digests[alg] = d
	return d
}

// MatchesDigest reports whether the certificate hashes to d.
func (t *CertificateToken) MatchesDigest(d identifier.Digest) bool {
	if d.Algorithm == 0 || !d.Algorithm.Available() {
		return false
	}
	return bytes.Equal(t.Digest(d.Algorithm), d.Value)
}

// CertificateRef is a digest-only reference to a certificate that is not
// itself carried in the container.
type CertificateRef struct {
	Digest identifier.Digest

	id identifier.Identifier
}

// NewCertificateRef creates a reference from a digest.
func NewCertificateRef(d identifier.Digest) *CertificateRef {
	return &CertificateRef{Digest: d, id: identifier.ForReference(d)}
}

// ID returns the stable identifier of the reference.
func (r *CertificateRef) ID() identifier.Identifier {
	return r.id
}

// CertificateSource holds the certificates and certificate references found
// in one container. Certificates are deduplicated by identifier; insertion
// order is preserved.
type CertificateSource struct {
	mu      sync.RWMutex
	order   []*CertificateToken
	byID    map[identifier.Identifier]*CertificateToken
	signing map[identifier.Identifier]bool
	refs    []*CertificateRef
}

// NewCertificateSource creates an empty certificate source.
func NewCertificateSource() *CertificateSource {
	return &CertificateSource{
		byID:    make(map[identifier.Identifier]*CertificateToken),
		signing: make(map[identifier.Identifier]bool),
	}
}

// Add registers a certificate token, returning the canonical token for its
// identity (the existing one if it was already present).
func (s *CertificateSource) Add(token *CertificateToken) *CertificateToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byID[token.ID()]; ok {
		return existing
	}
	s.byID[token.ID()] = token
	s.order = append(s.order, token)
	return token
}

// AddSigning registers a certificate and designates it as a signing
// certificate of the container.
func (s *CertificateSource) AddSigning(token *CertificateToken) *CertificateToken {
	canonical := s.Add(token)
	s.mu.Lock()
	s.signing[canonical.ID()] = true
	s.mu.Unlock()
	return canonical
}

// AddRef registers a digest-only certificate reference.
func (s *CertificateSource) AddRef(ref *CertificateRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.refs {
		if existing.ID() == ref.ID() {
			return
		}
	}
	s.refs = append(s.refs, ref)
}

// Certificates returns all certificates in insertion order.
func (s *CertificateSource) Certificates() []*CertificateToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*CertificateToken, len(s.order))
	copy(out, s.order)
	return out
}

// SigningCertificates returns the certificates designated as signing
// certificates, in insertion order.
func (s *CertificateSource) SigningCertificates() []*CertificateToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*CertificateToken
	for _, t := range s.order {
		if s.signing[t.ID()] {
			out = append(out, t)
		}
	}
	return out
}

// ByDigest returns the certificate hashing to d, or nil.
func (s *CertificateSource) ByDigest(d identifier.Digest) *CertificateToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.order {
		if t.MatchesDigest(d) {
			return t
		}
	}
	return nil
}

// RefByDigest returns the certificate reference carrying d, or nil.
func (s *CertificateSource) RefByDigest(d identifier.Digest) *CertificateRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.refs {
		if r.Digest.Equal(d) {
			return r
		}
	}
	return nil
}

// Refs returns all certificate references in insertion order.
func (s *CertificateSource) Refs() []*CertificateRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*CertificateRef, len(s.refs))
	copy(out, s.refs)
	return out
}
