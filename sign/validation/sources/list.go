package sources

import (
	"crypto"
	"sync"

	"github.com/LuisAnazgo/dss/sign/validation/identifier"
)

// ListCertificateSource is an append-only certificate collection merging the
// material of several containers. Entries are deduplicated by identifier and
// never removed.
type ListCertificateSource struct {
	mu    sync.RWMutex
	order []*CertificateToken
	byID  map[identifier.Identifier]*CertificateToken
}

// NewListCertificateSource creates an empty list source.
func NewListCertificateSource() *ListCertificateSource {
	return &ListCertificateSource{byID: make(map[identifier.Identifier]*CertificateToken)}
}

// Add registers a certificate, reporting whether it was newly added.
func (s *ListCertificateSource) Add(token *CertificateToken) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[token.ID()]; ok {
		return false
	}
	s.byID[token.ID()] = token
	s.order = append(s.order, token)
	return true
}

// AddAll registers every certificate of the given slice.
func (s *ListCertificateSource) AddAll(tokens []*CertificateToken) {
	for _, t := range tokens {
		s.Add(t)
	}
}

// Certificates returns all certificates in insertion order.
func (s *ListCertificateSource) Certificates() []*CertificateToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*CertificateToken, len(s.order))
	copy(out, s.order)
	return out
}

// ByDigest returns the certificate hashing to d, or nil.
func (s *ListCertificateSource) ByDigest(d identifier.Digest) *CertificateToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.order {
		if t.MatchesDigest(d) {
			return t
		}
	}
	return nil
}

// ListCRLSource aggregates the CRL sources of several containers. Component
// sources are only ever appended; a digest-indexed overlay is built lazily
// on first query and rebuilt after the next append.
type ListCRLSource struct {
	mu         sync.Mutex
	components []*CRLSource
	overlay    map[crypto.Hash]map[string]*CRLBinary
}

// NewListCRLSource creates a list source over the given initial components.
func NewListCRLSource(components ...*CRLSource) *ListCRLSource {
	s := &ListCRLSource{}
	for _, c := range components {
		if c != nil {
			s.components = append(s.components, c)
		}
	}
	return s
}

// Add appends a component source.
func (s *ListCRLSource) Add(c *CRLSource) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components = append(s.components, c)
	s.overlay = nil
}

// Binaries returns the CRLs of every component, insertion-ordered across
// components and deduplicated by identifier.
func (s *ListCRLSource) Binaries() []*CRLBinary {
	s.mu.Lock()
	components := make([]*CRLSource, len(s.components))
	copy(components, s.components)
	s.mu.Unlock()

	seen := make(map[identifier.Identifier]bool)
	var out []*CRLBinary
	for _, c := range components {
		for _, b := range c.Binaries() {
			if !seen[b.ID()] {
				seen[b.ID()] = true
				out = append(out, b)
			}
		}
	}
	return out
}

// Refs returns the CRL references of every component, deduplicated by
// identifier.
func (s *ListCRLSource) Refs() []*CRLRef {
	s.mu.Lock()
	components := make([]*CRLSource, len(s.components))
	copy(components, s.components)
	s.mu.Unlock()

	seen := make(map[identifier.Identifier]bool)
	var out []*CRLRef
	for _, c := range components {
		for _, r := range c.Refs() {
			if !seen[r.ID()] {
				seen[r.ID()] = true
				out = append(out, r)
			}
		}
	}
	return out
}

// ByDigest returns the CRL hashing to d across all components, or nil.
func (s *ListCRLSource) ByDigest(d identifier.Digest) *CRLBinary {
	if d.Algorithm == 0 || !d.Algorithm.Available() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlay == nil {
		s.overlay = make(map[crypto.Hash]map[string]*CRLBinary)
	}
	byValue, ok := s.overlay[d.Algorithm]
	if !ok {
		byValue = make(map[string]*CRLBinary)
		for _, c := range s.components {
			for _, b := range c.Binaries() {
				key := string(b.Digest(d.Algorithm))
				if _, dup := byValue[key]; !dup {
					byValue[key] = b
				}
			}
		}
		s.overlay[d.Algorithm] = byValue
	}
	return byValue[string(d.Value)]
}

// RefByDigest returns the CRL reference carrying d across all components,
// or nil.
func (s *ListCRLSource) RefByDigest(d identifier.Digest) *CRLRef {
	s.mu.Lock()
	components := make([]*CRLSource, len(s.components))
	copy(components, s.components)
	s.mu.Unlock()

	for _, c := range components {
		if r := c.RefByDigest(d); r != nil {
			return r
		}
	}
	return nil
}

// ListOCSPSource aggregates the OCSP sources of several containers, with
// the same append-only and lazy-overlay behaviour as ListCRLSource.
type ListOCSPSource struct {
	mu         sync.Mutex
	components []*OCSPSource
	overlay    map[crypto.Hash]map[string]*OCSPBinary
}

// NewListOCSPSource creates a list source over the given initial components.
func NewListOCSPSource(components ...*OCSPSource) *ListOCSPSource {
	s := &ListOCSPSource{}
	for _, c := range components {
		if c != nil {
			s.components = append(s.components, c)
		}
	}
	return s
}

// Add appends a component source.
func (s *ListOCSPSource) Add(c *OCSPSource) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components = append(s.components, c)
	s.overlay = nil
}

// Binaries returns the OCSP responses of every component, insertion-ordered
// across components and deduplicated by identifier.
func (s *ListOCSPSource) Binaries() []*OCSPBinary {
	s.mu.Lock()
	components := make([]*OCSPSource, len(s.components))
	copy(components, s.components)
	s.mu.Unlock()

	seen := make(map[identifier.Identifier]bool)
	var out []*OCSPBinary
	for _, c := range components {
		for _, b := range c.Binaries() {
			if !seen[b.ID()] {
				seen[b.ID()] = true
				out = append(out, b)
			}
		}
	}
	return out
}

// Refs returns the OCSP references of every component, deduplicated by
// identifier.
func (s *ListOCSPSource) Refs() []*OCSPRef {
	s.mu.Lock()
	components := make([]*OCSPSource, len(s.components))
	copy(components, s.components)
	s.mu.Unlock()

	seen := make(map[identifier.Identifier]bool)
	var out []*OCSPRef
	for _, c := range components {
		for _, r := range c.Refs() {
			if !seen[r.ID()] {
				seen[r.ID()] = true
				out = append(out, r)
			}
		}
	}
	return out
}

// ByDigest returns the OCSP response hashing to d across all components,
// or nil.
func (s *ListOCSPSource) ByDigest(d identifier.Digest) *OCSPBinary {
	if d.Algorithm == 0 || !d.Algorithm.Available() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlay == nil {
		s.overlay = make(map[crypto.Hash]map[string]*OCSPBinary)
	}
	byValue, ok := s.overlay[d.Algorithm]
	if !ok {
		byValue = make(map[string]*OCSPBinary)
		for _, c := range s.components {
			for _, b := range c.Binaries() {
				key := string(b.Digest(d.Algorithm))
				if _, dup := byValue[key]; !dup {
					byValue[key] = b
				}
			}
		}
		s.overlay[d.Algorithm] = byValue
	}
	return byValue[string(d.Value)]
}

// RefByDigest returns the OCSP reference carrying d across all components,
// or nil.
func (s *ListOCSPSource) RefByDigest(d identifier.Digest) *OCSPRef {
	s.mu.Lock()
	components := make([]*OCSPSource, len(s.components))
	copy(components, s.components)
	s.mu.Unlock()

	for _, c := range components {
		if r := c.RefByDigest(d); r != nil {
			return r
		}
	}
	return nil
}
