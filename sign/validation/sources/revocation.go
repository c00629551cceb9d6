package sources

import (
	"bytes"
	"crypto"
	"sync"

	"golang.org/x/crypto/ocsp"

	"github.com/LuisAnazgo/dss/sign/validation/identifier"
)

// CRLBinary is an encapsulated CRL with its stable identifier and a
// per-algorithm digest cache.
type CRLBinary struct {
	id  identifier.Identifier
	raw []byte

	mu      sync.Mutex
	digests map[crypto.Hash][]byte
}

// NewCRLBinary creates a binary from the DER encoding of a CRL.
func NewCRLBinary(raw []byte) *CRLBinary {
	return &CRLBinary{
		id:      identifier.ForEncapsulated(raw),
		raw:     raw,
		digests: make(map[crypto.Hash][]byte),
	}
}

// ID returns the stable identifier of the CRL.
func (b *CRLBinary) ID() identifier.Identifier { return b.id }

// Raw returns the DER encoding.
func (b *CRLBinary) Raw() []byte { return b.raw }

// Digest returns the digest of the encoding under alg, cached per algorithm.
func (b *CRLBinary) Digest(alg crypto.Hash) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.digests[alg]; ok {
		return d
	}
	h := alg.New()
	h.Write(b.raw)
	d := h.Sum(nil)
	b.digests[alg] = d
	return d
}

// MatchesDigest reports whether the CRL hashes to d.
func (b *CRLBinary) MatchesDigest(d identifier.Digest) bool {
	if d.Algorithm == 0 || !d.Algorithm.Available() {
		return false
	}
	return bytes.Equal(b.Digest(d.Algorithm), d.Value)
}

// OCSPBinary is an encapsulated OCSP response. The parsed response is kept
// when the encoding parses; an unparseable response still participates in
// digest matching through its raw bytes.
type OCSPBinary struct {
	id   identifier.Identifier
	raw  []byte
	resp *ocsp.Response

	mu      sync.Mutex
	digests map[crypto.Hash][]byte
}

// NewOCSPBinary creates a binary from the DER encoding of an OCSP response.
func NewOCSPBinary(raw []byte) *OCSPBinary {
	b := &OCSPBinary{
		id:      identifier.ForEncapsulated(raw),
		raw:     raw,
		digests: make(map[crypto.Hash][]byte),
	}
	if resp, err := ocsp.ParseResponse(raw, nil); err == nil {
		b.resp = resp
	}
	return b
}

// ID returns the stable identifier of the response.
func (b *OCSPBinary) ID() identifier.Identifier { return b.id }

// Raw returns the DER encoding.
func (b *OCSPBinary) Raw() []byte { return b.raw }

// Response returns the parsed OCSP response, or nil when the encoding did
// not parse.
func (b *OCSPBinary) Response() *ocsp.Response { return b.resp }

// Digest returns the digest of the encoding under alg, cached per algorithm.
func (b *OCSPBinary) Digest(alg crypto.Hash) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.digests[alg]; ok {
		return d
	}
	h := alg.New()
	h.Write(b.raw)
	d := h.Sum(nil)
	b.digests[alg] = d
	return d
}

// MatchesDigest reports whether the response hashes to d.
func (b *OCSPBinary) MatchesDigest(d identifier.Digest) bool {
	if d.Algorithm == 0 || !d.Algorithm.Available() {
		return false
	}
	return bytes.Equal(b.Digest(d.Algorithm), d.Value)
}

// CRLRef is a digest-only reference to a CRL.
type CRLRef struct {
	Digest identifier.Digest

	id identifier.Identifier
}

// NewCRLRef creates a reference from a digest.
func NewCRLRef(d identifier.Digest) *CRLRef {
	return &CRLRef{Digest: d, id: identifier.ForReference(d)}
}

// ID returns the stable identifier of the reference.
func (r *CRLRef) ID() identifier.Identifier { return r.id }

// OCSPRef is a digest-only reference to an OCSP response.
type OCSPRef struct {
	Digest identifier.Digest

	id identifier.Identifier
}

// NewOCSPRef creates a reference from a digest.
func NewOCSPRef(d identifier.Digest) *OCSPRef {
	return &OCSPRef{Digest: d, id: identifier.ForReference(d)}
}

// ID returns the stable identifier of the reference.
func (r *OCSPRef) ID() identifier.Identifier { return r.id }

// CRLSource holds the CRLs and CRL references found in one container.
type CRLSource struct {
	mu    sync.RWMutex
	order []*CRLBinary
	byID  map[identifier.Identifier]*CRLBinary
	refs  []*CRLRef
}

// NewCRLSource creates an empty CRL source.
func NewCRLSource() *CRLSource {
	return &CRLSource{byID: make(map[identifier.Identifier]*CRLBinary)}
}

// Add registers a CRL binary, returning the canonical binary for its
// identity.
func (s *CRLSource) Add(b *CRLBinary) *CRLBinary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byID[b.ID()]; ok {
		return existing
	}
	s.byID[b.ID()] = b
	s.order = append(s.order, b)
	return b
}

// AddRef registers a digest-only CRL reference.
func (s *CRLSource) AddRef(ref *CRLRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.refs {
		if existing.ID() == ref.ID() {
			return
		}
	}
	s.refs = append(s.refs, ref)
}

// Binaries returns all CRLs in insertion order.
func (s *CRLSource) Binaries() []*CRLBinary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*CRLBinary, len(s.order))
	copy(out, s.order)
	return out
}

// Refs returns all CRL references in insertion order.
func (s *CRLSource) Refs() []*CRLRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*CRLRef, len(s.refs))
	copy(out, s.refs)
	return out
}

// ByDigest returns the CRL hashing to d, or nil.
func (s *CRLSource) ByDigest(d identifier.Digest) *CRLBinary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.order {
		if b.MatchesDigest(d) {
			return b
		}
	}
	return nil
}

// RefByDigest returns the CRL reference carrying d, or nil.
func (s *CRLSource) RefByDigest(d identifier.Digest) *CRLRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.refs {
		if r.Digest.Equal(d) {
			return r
		}
	}
	return nil
}

// OCSPSource holds the OCSP responses and references found in one
// container.
type OCSPSource struct {
	mu    sync.RWMutex
	order []*OCSPBinary
	byID  map[identifier.Identifier]*OCSPBinary
	refs  []*OCSPRef
}

// NewOCSPSource creates an empty OCSP source.
func NewOCSPSource() *OCSPSource {
	return &OCSPSource{byID: make(map[identifier.Identifier]*OCSPBinary)}
}

// Add registers an OCSP binary, returning the canonical binary for its
// identity.
func (s *OCSPSource) Add(b *OCSPBinary) *OCSPBinary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byID[b.ID()]; ok {
		return existing
	}
	s.byID[b.ID()] = b
	s.order = append(s.order, b)
	return b
}

// AddRef registers a digest-only OCSP reference.
func (s *OCSPSource) AddRef(ref *OCSPRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.refs {
		if existing.ID() == ref.ID() {
			return
		}
	}
	s.refs = append(s.refs, ref)
}

// Binaries returns all OCSP responses in insertion order.
func (s *OCSPSource) Binaries() []*OCSPBinary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*OCSPBinary, len(s.order))
	copy(out, s.order)
	return out
}

// Refs returns all OCSP references in insertion order.
func (s *OCSPSource) Refs() []*OCSPRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*OCSPRef, len(s.refs))
	copy(out, s.refs)
	return out
}

// ByDigest returns the OCSP response hashing to d, or nil.
func (s *OCSPSource) ByDigest(d identifier.Digest) *OCSPBinary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.order {
		if b.MatchesDigest(d) {
			return b
		}
	}
	return nil
}

// RefByDigest returns the OCSP reference carrying d, or nil.
func (s *OCSPSource) RefByDigest(d identifier.Digest) *OCSPRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.refs {
		if r.Digest.Equal(d) {
			return r
		}
	}
	return nil
}
