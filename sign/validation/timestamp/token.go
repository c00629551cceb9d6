package timestamp

import (
	"sync"
	"time"

	"github.com/LuisAnazgo/dss/sign/timestamps"
	"github.com/LuisAnazgo/dss/sign/validation/identifier"
	"github.com/LuisAnazgo/dss/sign/validation/sources"
)

// Kind classifies a timestamp token by the role it plays in the signature.
type Kind int

const (
	KindContent Kind = iota
	KindAllDataObjects
	KindIndividualDataObjects
	KindSignature
	KindValidationDataRefsOnly
	KindValidationData
	KindArchive
	KindDocument
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content-timestamp"
	case KindAllDataObjects:
		return "all-data-objects-timestamp"
	case KindIndividualDataObjects:
		return "individual-data-objects-timestamp"
	case KindSignature:
		return "signature-timestamp"
	case KindValidationDataRefsOnly:
		return "refs-only-timestamp"
	case KindValidationData:
		return "sig-and-refs-timestamp"
	case KindArchive:
		return "archive-timestamp"
	case KindDocument:
		return "document-timestamp"
	default:
		return "unknown"
	}
}

// ArchiveSubKind identifies the dialect profile of an archive timestamp.
type ArchiveSubKind int

const (
	ArchiveSubKindNone ArchiveSubKind = iota
	ArchiveCAdES
	ArchiveCAdESV2
	ArchiveCAdESV3
	ArchiveXAdES
	ArchiveXAdES141
	ArchivePAdES
)

// String returns the string representation of the archive sub-kind.
func (k ArchiveSubKind) String() string {
	switch k {
	case ArchiveCAdES:
		return "cades"
	case ArchiveCAdESV2:
		return "cades-v2"
	case ArchiveCAdESV3:
		return "cades-v3"
	case ArchiveXAdES:
		return "xades"
	case ArchiveXAdES141:
		return "xades-141"
	case ArchivePAdES:
		return "pades"
	default:
		return "none"
	}
}

// MatchStatus is the outcome of matching a token's message imprint against
// the rebuilt timestamped data.
type MatchStatus int

const (
	MatchUnset MatchStatus = iota
	MatchMatched
	MatchMismatched
)

// String returns the string representation of the match status.
func (s MatchStatus) String() string {
	switch s {
	case MatchMatched:
		return "matched"
	case MatchMismatched:
		return "mismatched"
	default:
		return "unset"
	}
}

// Token is a timestamp token found in (or supplied to) a signature,
// together with the set of references it covers and the validation material
// embedded in its SignedData.
//
// A token is created once by the builder and mutated only by MatchData and,
// for external archive tokens, by reference appends during intake.
type Token struct {
	id             identifier.Identifier
	kind           Kind
	archiveSubKind ArchiveSubKind
	genTime        time.Time
	imprint        identifier.Digest
	raw            []byte

	certificates []*sources.CertificateToken
	crlSource    *sources.CRLSource
	ocspSource   *sources.OCSPSource

	refs *ReferenceList

	mu        sync.Mutex
	processed bool
	match     MatchStatus
}

// NewToken parses an RFC 3161 token encoding and wraps it with its kind and
// initial covered references. The embedded certificates and CRLs become the
// token's own sources.
func NewToken(raw []byte, kind Kind, refs []Reference) (*Token, error) {
	parsed, err := timestamps.ParseTimestampToken(raw)
	if err != nil {
		return nil, err
	}

	t := &Token{
		id:         identifier.ForEncapsulated(raw),
		kind:       kind,
		genTime:    parsed.GenTime(),
		raw:        raw,
		crlSource:  sources.NewCRLSource(),
		ocspSource: sources.NewOCSPSource(),
		refs:       NewReferenceList(),
	}

	imprint := parsed.Imprint()
	t.imprint = identifier.NewDigest(imprint.Hash(), imprint.HashedMessage)

	for _, cert := range parsed.Certificates {
		t.certificates = append(t.certificates, sources.NewCertificateToken(cert))
	}
	for _, crl := range parsed.CRLs {
		t.crlSource.Add(sources.NewCRLBinary(crl))
	}

	t.refs.AddAll(refs)
	return t, nil
}

// ID returns the stable identifier of the token.
func (t *Token) ID() identifier.Identifier { return t.id }

// Kind returns the token's classification.
func (t *Token) Kind() Kind { return t.kind }

// ArchiveSubKind returns the dialect profile of an archive token.
func (t *Token) ArchiveSubKind() ArchiveSubKind { return t.archiveSubKind }

// SetArchiveSubKind records the dialect profile of an archive token.
func (t *Token) SetArchiveSubKind(k ArchiveSubKind) { t.archiveSubKind = k }

// GenTime returns the generation time asserted by the token.
func (t *Token) GenTime() time.Time { return t.genTime }

// MessageImprint returns the digest the token binds.
func (t *Token) MessageImprint() identifier.Digest { return t.imprint }

// Raw returns the DER encoding of the token.
func (t *Token) Raw() []byte { return t.raw }

// Certificates returns the certificates embedded in the token.
func (t *Token) Certificates() []*sources.CertificateToken {
	return t.certificates
}

// CRLSource returns the CRL material embedded in the token.
func (t *Token) CRLSource() *sources.CRLSource { return t.crlSource }

// OCSPSource returns the OCSP material embedded in the token.
func (t *Token) OCSPSource() *sources.OCSPSource { return t.ocspSource }

// References returns the covered references in append order.
func (t *Token) References() []Reference { return t.refs.List() }

// AddReferences appends references to the covered set, preserving order and
// refusing duplicates. Used by the builder for kind-specific additions and
// by the external intake.
func (t *Token) AddReferences(refs []Reference) {
	t.refs.AddAll(refs)
}

// Processed reports whether MatchData already ran for the token.
func (t *Token) Processed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processed
}

// MatchResult returns the outcome of the imprint match.
func (t *Token) MatchResult() MatchStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.match
}

// MatchData digests data with the token's imprint algorithm and compares
// the result with the stored imprint, recording matched or mismatched.
// Matched and mismatched are absorbing: once processed, further calls are
// no-ops. It returns the recorded status.
func (t *Token) MatchData(data []byte) MatchStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.processed {
		return t.match
	}
	t.processed = true
	if t.imprintMatches(data) {
		t.match = MatchMatched
	} else {
		t.match = MatchMismatched
	}
	return t.match
}

func (t *Token) imprintMatches(data []byte) bool {
	alg := t.imprint.Algorithm
	if alg == 0 || !alg.Available() || len(data) == 0 {
		return false
	}
	return identifier.Compute(alg, data).Equal(t.imprint)
}
