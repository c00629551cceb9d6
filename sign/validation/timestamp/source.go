package timestamp

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/LuisAnazgo/dss/sign/validation/identifier"
	"github.com/LuisAnazgo/dss/sign/validation/sources"
)

// Common errors
var (
	// ErrUnsupportedTimestampKind is returned by AddExternalTimestamp for
	// tokens that are not archive timestamps.
	ErrUnsupportedTimestampKind = errors.New("unsupported external timestamp kind")
)

// Option configures a Source.
type Option func(*Source)

// WithLogger injects a logger. The default is zerolog.Nop().
func WithLogger(log zerolog.Logger) Option {
	return func(s *Source) { s.log = log }
}

// WithValidation controls whether message imprints are matched during the
// build. Enabled by default.
func WithValidation(enabled bool) Option {
	return func(s *Source) { s.validate = enabled }
}

// Source discovers the timestamp tokens of one signature and computes, for
// each of them, the exact set of references it covers.
//
// The build runs at most once, on the first accessor call; concurrent
// callers block until it completes and then observe the finished lists.
// After the build the only mutations are MatchData on tokens and archive
// appends through AddExternalTimestamp.
type Source struct {
	dialect Dialect
	log     zerolog.Logger

	sigID    identifier.Identifier
	scopes   []SignatureScope
	signed   []Attribute
	unsigned []Attribute
	hasUP    bool

	sigCertSource *sources.CertificateSource
	sigCRLSource  *sources.CRLSource
	sigOCSPSource *sources.OCSPSource

	validate bool

	once sync.Once
	mu   sync.Mutex

	contentTimestamps    []*Token
	signatureTimestamps  []*Token
	sigAndRefsTimestamps []*Token
	refsOnlyTimestamps   []*Token
	archiveTimestamps    []*Token

	// Aggregates merging signature material with the material of every
	// discovered timestamp.
	crlSource  *sources.ListCRLSource
	ocspSource *sources.ListOCSPSource

	// Certificates found inside timestamps.
	timestampCertSource *sources.ListCertificateSource
}

// NewSource creates a timestamp source over a parsed signature. The dialect
// supplies the classifier, the extractors and the data builder of the
// signature format.
func NewSource(ctx SignatureContext, dialect Dialect, opts ...Option) *Source {
	s := &Source{
		dialect:       dialect,
		log:           zerolog.Nop(),
		sigID:         ctx.SignatureID,
		scopes:        ctx.Scopes,
		signed:        ctx.SignedAttributes,
		unsigned:      ctx.UnsignedAttributes,
		hasUP:         ctx.HasUnsignedProperties,
		sigCertSource: ctx.CertificateSource,
		sigCRLSource:  ctx.CRLSource,
		sigOCSPSource: ctx.OCSPSource,
		validate:      true,
	}
	if s.sigCertSource == nil {
		s.sigCertSource = sources.NewCertificateSource()
	}
	if s.sigCRLSource == nil {
		s.sigCRLSource = sources.NewCRLSource()
	}
	if s.sigOCSPSource == nil {
		s.sigOCSPSource = sources.NewOCSPSource()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// createAndValidate builds the timestamp lists and matches message
// imprints. Runs at most once.
func (s *Source) createAndValidate() {
	s.once.Do(func() {
		s.makeTimestampTokens()
		if s.validate {
			s.validateTimestamps()
		}
	})
}

// ContentTimestamps returns the content and data-object timestamps found in
// the signed properties, in document order.
func (s *Source) ContentTimestamps() []*Token {
	s.createAndValidate()
	return s.contentTimestamps
}

// SignatureTimestamps returns the signature timestamps, in document order.
func (s *Source) SignatureTimestamps() []*Token {
	s.createAndValidate()
	return s.signatureTimestamps
}

// TimestampsX1 returns the sig-and-refs (type 1) validation-data
// timestamps, in document order.
func (s *Source) TimestampsX1() []*Token {
	s.createAndValidate()
	return s.sigAndRefsTimestamps
}

// TimestampsX2 returns the refs-only (type 2) validation-data timestamps,
// in document order.
func (s *Source) TimestampsX2() []*Token {
	s.createAndValidate()
	return s.refsOnlyTimestamps
}

// ArchiveTimestamps returns the archive timestamps: internally discovered
// tokens in document order followed by externally added tokens in append
// order.
func (s *Source) ArchiveTimestamps() []*Token {
	s.createAndValidate()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Token, len(s.archiveTimestamps))
	copy(out, s.archiveTimestamps)
	return out
}

// DocumentTimestamps returns the document timestamps. Only PDF dialects
// have them; the default is empty.
func (s *Source) DocumentTimestamps() []*Token {
	return nil
}

// AllTimestamps returns every timestamp in the order content, signature,
// x1, x2, archive.
func (s *Source) AllTimestamps() []*Token {
	s.createAndValidate()
	var out []*Token
	out = append(out, s.ContentTimestamps()...)
	out = append(out, s.SignatureTimestamps()...)
	out = append(out, s.TimestampsX1()...)
	out = append(out, s.TimestampsX2()...)
	out = append(out, s.ArchiveTimestamps()...)
	return out
}

// CRLSource returns the aggregate CRL source merging the signature's
// material with the material of every discovered timestamp.
func (s *Source) CRLSource() *sources.ListCRLSource {
	s.createAndValidate()
	return s.crlSource
}

// OCSPSource returns the aggregate OCSP source merging the signature's
// material with the material of every discovered timestamp.
func (s *Source) OCSPSource() *sources.ListOCSPSource {
	s.createAndValidate()
	return s.ocspSource
}

// TimestampCRLSources aggregates the CRL sources of every timestamp.
func (s *Source) TimestampCRLSources() *sources.ListCRLSource {
	result := sources.NewListCRLSource()
	for _, t := range s.AllTimestamps() {
		result.Add(t.CRLSource())
	}
	return result
}

// TimestampOCSPSources aggregates the OCSP sources of every timestamp.
func (s *Source) TimestampOCSPSources() *sources.ListOCSPSource {
	result := sources.NewListOCSPSource()
	for _, t := range s.AllTimestamps() {
		result.Add(t.OCSPSource())
	}
	return result
}

// Certificates returns the certificates accumulated from every timestamp.
func (s *Source) Certificates() []*sources.CertificateToken {
	s.createAndValidate()
	return s.timestampCertSource.Certificates()
}

// CertificateMapWithinTimestamps maps a synthetic key per timestamp to the
// timestamp's certificate list. The counter is shared across the lists, in
// the order content, x1, x2, signature, archive, so keys are unique. When
// skipLastArchive is true the last archive entry is omitted.
func (s *Source) CertificateMapWithinTimestamps(skipLastArchive bool) map[string][]*sources.CertificateToken {
	s.createAndValidate()

	result := make(map[string][]*sources.CertificateToken)
	counter := 0
	put := func(t *Token) {
		result[t.Kind().String()+strconv.Itoa(counter)] = t.Certificates()
		counter++
	}

	for _, t := range s.ContentTimestamps() {
		put(t)
	}
	for _, t := range s.TimestampsX1() {
		put(t)
	}
	for _, t := range s.TimestampsX2() {
		put(t)
	}
	for _, t := range s.SignatureTimestamps() {
		put(t)
	}

	archive := s.ArchiveTimestamps()
	size := len(archive)
	if skipLastArchive && size > 0 {
		size--
	}
	for i := 0; i < size; i++ {
		put(archive[i])
	}

	return result
}

// AddExternalTimestamp inserts a post-hoc archive timestamp. Non-archive
// kinds are rejected without touching any state. The token's covered
// references are extended with the signature's SignedData references and
// with the references derived from every previously known timestamp, and
// its certificates are absorbed before it is appended to the archive list.
func (s *Source) AddExternalTimestamp(t *Token) error {
	if t.Kind() != KindArchive {
		return fmt.Errorf("%w: %s", ErrUnsupportedTimestampKind, t.Kind())
	}
	s.createAndValidate()

	refs := NewReferenceList()
	refs.AddAll(t.References())
	refs.AddAll(s.dialect.SignatureSignedDataReferences())
	s.addReferencesForPreviousTimestamps(refs, s.AllTimestamps())
	t.AddReferences(refs.List())

	for _, cert := range t.Certificates() {
		s.timestampCertSource.Add(cert)
	}

	s.mu.Lock()
	s.archiveTimestamps = append(s.archiveTimestamps, t)
	s.mu.Unlock()
	return nil
}

// makeTimestampTokens populates the lists from the signature properties.
func (s *Source) makeTimestampTokens() {
	s.contentTimestamps = []*Token{}
	s.signatureTimestamps = []*Token{}
	s.sigAndRefsTimestamps = []*Token{}
	s.refsOnlyTimestamps = []*Token{}
	s.archiveTimestamps = []*Token{}

	s.crlSource = sources.NewListCRLSource(s.sigCRLSource)
	s.ocspSource = sources.NewListOCSPSource(s.sigOCSPSource)
	s.timestampCertSource = sources.NewListCertificateSource()

	d := s.dialect

	// Phase A: signed properties, document order.
	for _, attr := range s.signed {
		var token *Token
		var err error

		switch {
		case d.IsContentTimestamp(attr):
			token, err = d.MakeTimestampToken(attr, KindContent, s.allContentReferences())
		case d.IsAllDataObjectsTimestamp(attr):
			token, err = d.MakeTimestampToken(attr, KindAllDataObjects, s.allContentReferences())
		case d.IsIndividualDataObjectsTimestamp(attr):
			token, err = d.MakeTimestampToken(attr, KindIndividualDataObjects, d.IndividualContentReferences(attr))
		default:
			continue
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("skipping malformed content timestamp attribute")
			continue
		}
		if token == nil {
			continue
		}

		s.absorbToken(token)
		s.contentTimestamps = append(s.contentTimestamps, token)
	}

	// Timestamp tokens cannot be present without an unsigned-properties
	// container.
	if !s.hasUP {
		return
	}

	// Phase B: unsigned properties, document order, with the running
	// accumulators confined to this function.
	var emitted []*Token
	encapsulated := NewReferenceList()

	for _, attr := range s.unsigned {
		var token *Token
		var err error

		switch {
		case d.IsSignatureTimestamp(attr):
			token, err = d.MakeTimestampToken(attr, KindSignature, s.signatureTimestampReferences())
			if err != nil || token == nil {
				break
			}
			s.signatureTimestamps = append(s.signatureTimestamps, token)

		case d.IsCompleteCertificateRef(attr), d.IsAttributeCertificateRef(attr):
			encapsulated.AddAll(s.timestampedCertificateRefs(attr))
			continue

		case d.IsCompleteRevocationRef(attr), d.IsAttributeRevocationRef(attr):
			encapsulated.AddAll(s.timestampedRevocationRefs(attr))
			continue

		case d.IsRefsOnlyTimestamp(attr):
			token, err = d.MakeTimestampToken(attr, KindValidationDataRefsOnly, encapsulated.List())
			if err != nil || token == nil {
				break
			}
			s.refsOnlyTimestamps = append(s.refsOnlyTimestamps, token)

		case d.IsSigAndRefsTimestamp(attr):
			refs := NewReferenceList()
			s.addReferencesForPreviousTimestamps(refs, filterByKind(emitted, KindSignature))
			refs.AddAll(encapsulated.List())

			token, err = d.MakeTimestampToken(attr, KindValidationData, refs.List())
			if err != nil || token == nil {
				break
			}
			s.sigAndRefsTimestamps = append(s.sigAndRefsTimestamps, token)

		case d.IsCertificateValues(attr):
			encapsulated.AddAll(s.timestampedCertificateValues(attr))
			continue

		case d.IsRevocationValues(attr):
			encapsulated.AddAll(s.timestampedRevocationValues(attr))
			continue

		case d.IsArchiveTimestamp(attr):
			refs := NewReferenceList()
			s.addReferencesForPreviousTimestamps(refs, emitted)
			refs.AddAll(encapsulated.List())

			token, err = d.MakeTimestampToken(attr, KindArchive, refs.List())
			if err != nil || token == nil {
				break
			}
			token.SetArchiveSubKind(d.ArchiveSubKindOf(attr))
			token.AddReferences(d.SignedDataReferences(token))
			s.archiveTimestamps = append(s.archiveTimestamps, token)

		case d.IsTimeStampValidationData(attr):
			encapsulated.AddAll(s.timestampedCertificateValues(attr))
			encapsulated.AddAll(s.timestampedRevocationValues(attr))
			continue

		default:
			s.log.Warn().Msg("unsigned attribute is not supported")
			continue
		}

		if err != nil {
			s.log.Warn().Err(err).Msg("skipping malformed timestamp attribute")
			continue
		}
		if token == nil {
			continue
		}

		s.absorbToken(token)
		emitted = append(emitted, token)
	}
}

// absorbToken merges the token's validation material into the shared
// sources.
func (s *Source) absorbToken(t *Token) {
	s.timestampCertSource.AddAll(t.Certificates())
	s.crlSource.Add(t.CRLSource())
	s.ocspSource.Add(t.OCSPSource())
}

// allContentReferences returns one signed-data reference per signature
// scope.
func (s *Source) allContentReferences() []Reference {
	refs := NewReferenceList()
	for _, scope := range s.scopes {
		refs.Add(NewReference(scope.ID, ObjectSignedData))
	}
	return refs.List()
}

// signatureTimestampReferences returns the references a signature timestamp
// covers: the content references, the signature itself and the signing
// certificates.
func (s *Source) signatureTimestampReferences() []Reference {
	refs := NewReferenceList()
	refs.AddAll(s.allContentReferences())
	refs.Add(NewReference(s.sigID, ObjectSignature))
	for _, cert := range s.sigCertSource.SigningCertificates() {
		refs.Add(NewReference(cert.ID(), ObjectCertificate))
	}
	return refs.List()
}

// timestampedCertificateRefs resolves the digests of a certificate-refs
// attribute against the signature and timestamp certificate sources,
// falling back to the refs declared in the signature source.
func (s *Source) timestampedCertificateRefs(attr Attribute) []Reference {
	var refs []Reference
	for _, digest := range s.dialect.CertificateRefDigests(attr) {
		if cert := s.sigCertSource.ByDigest(digest); cert != nil {
			refs = append(refs, NewReference(cert.ID(), ObjectCertificate))
			continue
		}
		if cert := s.timestampCertSource.ByDigest(digest); cert != nil {
			refs = append(refs, NewReference(cert.ID(), ObjectCertificate))
			continue
		}
		if ref := s.sigCertSource.RefByDigest(digest); ref != nil {
			refs = append(refs, NewReference(ref.ID(), ObjectCertificate))
			continue
		}
		s.log.Debug().Stringer("digest", digest).Msg("certificate ref digest resolved to neither a value nor a ref")
	}
	return refs
}

// timestampedRevocationRefs resolves the digests of a revocation-refs
// attribute against the aggregate CRL and OCSP sources.
func (s *Source) timestampedRevocationRefs(attr Attribute) []Reference {
	var refs []Reference
	for _, digest := range s.dialect.RevocationRefCRLDigests(attr) {
		if bin := s.crlSource.ByDigest(digest); bin != nil {
			refs = append(refs, NewReference(bin.ID(), ObjectRevocation))
			continue
		}
		if ref := s.crlSource.RefByDigest(digest); ref != nil {
			refs = append(refs, NewReference(ref.ID(), ObjectRevocation))
			continue
		}
		s.log.Debug().Stringer("digest", digest).Msg("CRL ref digest resolved to neither a value nor a ref")
	}

	for _, digest := range s.dialect.RevocationRefOCSPDigests(attr) {
		if bin := s.ocspSource.ByDigest(digest); bin != nil {
			refs = append(refs, NewReference(bin.ID(), ObjectRevocation))
			continue
		}
		if ref := s.ocspSource.RefByDigest(digest); ref != nil {
			refs = append(refs, NewReference(ref.ID(), ObjectRevocation))
			continue
		}
		s.log.Debug().Stringer("digest", digest).Msg("OCSP ref digest resolved to neither a value nor a ref")
	}
	return refs
}

// timestampedCertificateValues returns a certificate reference per
// encapsulated certificate of the attribute.
func (s *Source) timestampedCertificateValues(attr Attribute) []Reference {
	var refs []Reference
	for _, id := range s.dialect.EncapsulatedCertificates(attr) {
		refs = append(refs, NewReference(id, ObjectCertificate))
	}
	return refs
}

// timestampedRevocationValues returns a revocation reference per
// encapsulated CRL and OCSP binary of the attribute.
func (s *Source) timestampedRevocationValues(attr Attribute) []Reference {
	var refs []Reference
	for _, crl := range s.dialect.EncapsulatedCRLs(attr) {
		refs = append(refs, NewReference(crl.ID(), ObjectRevocation))
	}
	for _, resp := range s.dialect.EncapsulatedOCSPs(attr) {
		refs = append(refs, NewReference(resp.ID(), ObjectRevocation))
	}
	return refs
}

// addReferencesForPreviousTimestamps expands every prior token into the
// reference list: the token itself, everything it covers and every
// certificate embedded in it.
func (s *Source) addReferencesForPreviousTimestamps(refs *ReferenceList, tokens []*Token) {
	for _, t := range tokens {
		refs.Add(NewReference(t.ID(), ObjectTimestamp))
		refs.AddAll(t.References())
		for _, cert := range t.Certificates() {
			refs.Add(NewReference(cert.ID(), ObjectCertificate))
		}
	}
}

// filterByKind returns the tokens of the given kind, preserving order.
func filterByKind(tokens []*Token, kind Kind) []*Token {
	var out []*Token
	for _, t := range tokens {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}

// validateTimestamps rebuilds the timestamped data of every token and
// matches message imprints. Archive tokens that were already processed are
// skipped so external intake can trigger incremental validation.
func (s *Source) validateTimestamps() {
	d := s.dialect

	for _, t := range s.contentTimestamps {
		t.MatchData(d.ContentTimestampData(t))
	}
	for _, t := range s.signatureTimestamps {
		t.MatchData(d.SignatureTimestampData(t))
	}
	for _, t := range s.sigAndRefsTimestamps {
		t.MatchData(d.TimestampX1Data(t))
	}
	for _, t := range s.refsOnlyTimestamps {
		t.MatchData(d.TimestampX2Data(t))
	}
	for _, t := range s.archiveTimestamps {
		if !t.Processed() {
			t.MatchData(d.ArchiveTimestampData(t))
		}
	}
}
