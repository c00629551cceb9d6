package timestamp

import (
	"crypto"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/LuisAnazgo/dss/sign/validation/identifier"
	"github.com/LuisAnazgo/dss/sign/validation/sources"
)

// stubAttribute is a scripted signature property.
type stubAttribute struct {
	kind     string
	tokenDER []byte

	certDigests []identifier.Digest
	crlDigests  []identifier.Digest
	ocspDigests []identifier.Digest

	certValues [][]byte
	crls       []*sources.CRLBinary
	ocsps      []*sources.OCSPBinary
}

// stubDialect drives the builder with scripted attributes and fixed
// timestamped data per kind.
type stubDialect struct {
	contentData   []byte
	signatureData []byte
	x1Data        []byte
	x2Data        []byte
	archiveData   []byte

	signedDataRefs          []Reference
	signatureSignedDataRefs []Reference

	mu         sync.Mutex
	makeCalls  int
	archiveSub ArchiveSubKind
}

func newStubDialect() *stubDialect {
	return &stubDialect{
		contentData:   []byte("stub content data"),
		signatureData: []byte("stub signature value"),
		x1Data:        []byte("stub x1 data"),
		x2Data:        []byte("stub x2 data"),
		archiveData:   []byte("stub archive data"),
		archiveSub:    ArchiveCAdESV2,
	}
}

func attrKind(attr Attribute, kind string) bool {
	a, ok := attr.(*stubAttribute)
	return ok && a.kind == kind
}

func (d *stubDialect) IsContentTimestamp(a Attribute) bool    { return attrKind(a, "content") }
func (d *stubDialect) IsAllDataObjectsTimestamp(a Attribute) bool {
	return attrKind(a, "all-data-objects")
}
func (d *stubDialect) IsIndividualDataObjectsTimestamp(a Attribute) bool {
	return attrKind(a, "individual-data-objects")
}
func (d *stubDialect) IsSignatureTimestamp(a Attribute) bool     { return attrKind(a, "signature") }
func (d *stubDialect) IsCompleteCertificateRef(a Attribute) bool { return attrKind(a, "cert-refs") }
func (d *stubDialect) IsAttributeCertificateRef(a Attribute) bool {
	return attrKind(a, "attr-cert-refs")
}
func (d *stubDialect) IsCompleteRevocationRef(a Attribute) bool { return attrKind(a, "rev-refs") }
func (d *stubDialect) IsAttributeRevocationRef(a Attribute) bool {
	return attrKind(a, "attr-rev-refs")
}
func (d *stubDialect) IsRefsOnlyTimestamp(a Attribute) bool   { return attrKind(a, "refs-only") }
func (d *stubDialect) IsSigAndRefsTimestamp(a Attribute) bool { return attrKind(a, "sig-and-refs") }
func (d *stubDialect) IsCertificateValues(a Attribute) bool   { return attrKind(a, "cert-values") }
func (d *stubDialect) IsRevocationValues(a Attribute) bool    { return attrKind(a, "rev-values") }
func (d *stubDialect) IsArchiveTimestamp(a Attribute) bool    { return attrKind(a, "archive") }
func (d *stubDialect) IsTimeStampValidationData(a Attribute) bool {
	return attrKind(a, "ts-validation-data")
}

func (d *stubDialect) MakeTimestampToken(attr Attribute, kind Kind, refs []Reference) (*Token, error) {
	d.mu.Lock()
	d.makeCalls++
	d.mu.Unlock()

	a := attr.(*stubAttribute)
	if a.tokenDER == nil {
		return nil, fmt.Errorf("scripted malformed attribute")
	}
	return NewToken(a.tokenDER, kind, refs)
}

func (d *stubDialect) CertificateRefDigests(attr Attribute) []identifier.Digest {
	return attr.(*stubAttribute).certDigests
}

func (d *stubDialect) RevocationRefCRLDigests(attr Attribute) []identifier.Digest {
	return attr.(*stubAttribute).crlDigests
}

func (d *stubDialect) RevocationRefOCSPDigests(attr Attribute) []identifier.Digest {
	return attr.(*stubAttribute).ocspDigests
}

func (d *stubDialect) EncapsulatedCertificates(attr Attribute) []identifier.Identifier {
	var ids []identifier.Identifier
	for _, raw := range attr.(*stubAttribute).certValues {
		ids = append(ids, identifier.ForEncapsulated(raw))
	}
	return ids
}

func (d *stubDialect) EncapsulatedCRLs(attr Attribute) []*sources.CRLBinary {
	return attr.(*stubAttribute).crls
}

func (d *stubDialect) EncapsulatedOCSPs(attr Attribute) []*sources.OCSPBinary {
	return attr.(*stubAttribute).ocsps
}

func (d *stubDialect) IndividualContentReferences(Attribute) []Reference { return nil }

func (d *stubDialect) ArchiveSubKindOf(Attribute) ArchiveSubKind { return d.archiveSub }

func (d *stubDialect) SignedDataReferences(*Token) []Reference { return d.signedDataRefs }

func (d *stubDialect) SignatureSignedDataReferences() []Reference {
	return d.signatureSignedDataRefs
}

func (d *stubDialect) ContentTimestampData(*Token) []byte   { return d.contentData }
func (d *stubDialect) SignatureTimestampData(*Token) []byte { return d.signatureData }
func (d *stubDialect) TimestampX1Data(*Token) []byte        { return d.x1Data }
func (d *stubDialect) TimestampX2Data(*Token) []byte        { return d.x2Data }
func (d *stubDialect) ArchiveTimestampData(*Token) []byte   { return d.archiveData }

func (d *stubDialect) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.makeCalls
}

// signingCertToken returns the TSA certificate as a signing certificate.
func signingCertToken(t *testing.T) *sources.CertificateToken {
	t.Helper()
	return sources.NewCertificateToken(testTimestamper(t).TSACert)
}

// newTestContext assembles a context with one scope and a signing
// certificate.
func newTestContext(t *testing.T, signed, unsigned []Attribute) SignatureContext {
	t.Helper()
	certSource := sources.NewCertificateSource()
	certSource.AddSigning(signingCertToken(t))
	return SignatureContext{
		SignatureID:           "SIG-1",
		Scopes:                []SignatureScope{{ID: "SCOPE-1", Name: "full"}},
		SignedAttributes:      signed,
		UnsignedAttributes:    unsigned,
		HasUnsignedProperties: unsigned != nil,
		CertificateSource:     certSource,
		CRLSource:             sources.NewCRLSource(),
		OCSPSource:            sources.NewOCSPSource(),
	}
}

func hasReference(refs []Reference, want Reference) bool {
	for _, r := range refs {
		if r == want {
			return true
		}
	}
	return false
}

// TestBLevelSignature covers a signature with no timestamps at all.
func TestBLevelSignature(t *testing.T) {
	ctx := newTestContext(t, nil, nil)
	src := NewSource(ctx, newStubDialect())

	if n := len(src.ContentTimestamps()); n != 0 {
		t.Errorf("content timestamps = %d, want 0", n)
	}
	if n := len(src.SignatureTimestamps()); n != 0 {
		t.Errorf("signature timestamps = %d, want 0", n)
	}
	if n := len(src.TimestampsX1()); n != 0 {
		t.Errorf("x1 timestamps = %d, want 0", n)
	}
	if n := len(src.TimestampsX2()); n != 0 {
		t.Errorf("x2 timestamps = %d, want 0", n)
	}
	if n := len(src.ArchiveTimestamps()); n != 0 {
		t.Errorf("archive timestamps = %d, want 0", n)
	}
	if m := src.CertificateMapWithinTimestamps(false); len(m) != 0 {
		t.Errorf("certificate map has %d entries, want 0", len(m))
	}
	if n := len(src.DocumentTimestamps()); n != 0 {
		t.Errorf("document timestamps = %d, want 0", n)
	}
}

// TestTLevelSignature covers one signature timestamp.
func TestTLevelSignature(t *testing.T) {
	dialect := newStubDialect()
	unsigned := []Attribute{
		&stubAttribute{kind: "signature", tokenDER: mintToken(t, dialect.signatureData)},
	}
	ctx := newTestContext(t, nil, unsigned)
	src := NewSource(ctx, dialect)

	sigTimestamps := src.SignatureTimestamps()
	if len(sigTimestamps) != 1 {
		t.Fatalf("signature timestamps = %d, want 1", len(sigTimestamps))
	}
	token := sigTimestamps[0]

	refs := token.References()
	if !hasReference(refs, NewReference("SIG-1", ObjectSignature)) {
		t.Error("missing reference to the signature itself")
	}
	if !hasReference(refs, NewReference("SCOPE-1", ObjectSignedData)) {
		t.Error("missing reference to the signature scope")
	}
	signingID := signingCertToken(t).ID()
	if !hasReference(refs, NewReference(signingID, ObjectCertificate)) {
		t.Error("missing reference to the signing certificate")
	}

	if token.MatchResult() != MatchMatched {
		t.Errorf("MatchResult = %v, want matched", token.MatchResult())
	}
	if n := len(src.ArchiveTimestamps()); n != 0 {
		t.Errorf("archive timestamps = %d, want 0", n)
	}
}

// TestLTLevelSignature covers certificate and revocation values next to a
// signature timestamp.
func TestLTLevelSignature(t *testing.T) {
	dialect := newStubDialect()
	crl := sources.NewCRLBinary([]byte("embedded CRL"))
	ocsp := sources.NewOCSPBinary([]byte("embedded OCSP"))

	unsigned := []Attribute{
		&stubAttribute{kind: "signature", tokenDER: mintToken(t, dialect.signatureData)},
		&stubAttribute{kind: "cert-values", certValues: [][]byte{[]byte("cert-1"), []byte("cert-2")}},
		&stubAttribute{kind: "rev-values", crls: []*sources.CRLBinary{crl}, ocsps: []*sources.OCSPBinary{ocsp}},
	}
	ctx := newTestContext(t, nil, unsigned)
	ctx.CRLSource.Add(sources.NewCRLBinary([]byte("signature CRL")))

	src := NewSource(ctx, dialect)

	if n := len(src.SignatureTimestamps()); n != 1 {
		t.Fatalf("signature timestamps = %d, want 1", n)
	}
	if n := len(src.ArchiveTimestamps()); n != 0 {
		t.Errorf("archive timestamps = %d, want 0", n)
	}

	// The aggregate merges the signature material with the timestamp
	// material; the token's own SignedData carries the TSA certificate.
	if n := len(src.Certificates()); n == 0 {
		t.Error("expected certificates accumulated from the timestamp")
	}
	if n := len(src.CRLSource().Binaries()); n != 1 {
		t.Errorf("aggregate CRL binaries = %d, want 1", n)
	}
}

// TestLTALevelSignature covers the archive timestamp of an LTA signature.
func TestLTALevelSignature(t *testing.T) {
	dialect := newStubDialect()
	dialect.signedDataRefs = []Reference{NewReference("SD-EXTRA", ObjectSignedData)}

	certValue := []byte("lt cert value")
	crl := sources.NewCRLBinary([]byte("lt CRL"))

	sigToken := mintToken(t, dialect.signatureData)
	unsigned := []Attribute{
		&stubAttribute{kind: "signature", tokenDER: sigToken},
		&stubAttribute{kind: "cert-values", certValues: [][]byte{certValue}},
		&stubAttribute{kind: "rev-values", crls: []*sources.CRLBinary{crl}},
		&stubAttribute{kind: "archive", tokenDER: mintToken(t, dialect.archiveData)},
	}
	ctx := newTestContext(t, nil, unsigned)
	src := NewSource(ctx, dialect)

	archive := src.ArchiveTimestamps()
	if len(archive) != 1 {
		t.Fatalf("archive timestamps = %d, want 1", len(archive))
	}
	t1 := src.SignatureTimestamps()[0]
	t2 := archive[0]

	refs := t2.References()
	if !hasReference(refs, NewReference(t1.ID(), ObjectTimestamp)) {
		t.Error("archive timestamp does not reference the signature timestamp")
	}
	for _, r := range t1.References() {
		if !hasReference(refs, r) {
			t.Errorf("archive timestamp misses inherited reference %v", r)
		}
	}
	for _, cert := range t1.Certificates() {
		if !hasReference(refs, NewReference(cert.ID(), ObjectCertificate)) {
			t.Errorf("archive timestamp misses certificate %v of the prior timestamp", cert.ID())
		}
	}
	if !hasReference(refs, NewReference(identifier.ForEncapsulated(certValue), ObjectCertificate)) {
		t.Error("archive timestamp misses the encapsulated certificate value")
	}
	if !hasReference(refs, NewReference(crl.ID(), ObjectRevocation)) {
		t.Error("archive timestamp misses the encapsulated CRL")
	}
	if !hasReference(refs, NewReference("SD-EXTRA", ObjectSignedData)) {
		t.Error("archive timestamp misses the dialect signed-data reference")
	}
	if t2.ArchiveSubKind() != ArchiveCAdESV2 {
		t.Errorf("ArchiveSubKind = %v, want %v", t2.ArchiveSubKind(), ArchiveCAdESV2)
	}
	if t2.MatchResult() != MatchMatched {
		t.Errorf("archive MatchResult = %v, want matched", t2.MatchResult())
	}
}

// TestRefsResolution covers resolution of ref digests against values, the
// declared refs, and the unresolvable case.
func TestRefsResolution(t *testing.T) {
	dialect := newStubDialect()
	signing := signingCertToken(t)
	knownDigest := identifier.Compute(crypto.SHA256, signing.Certificate().Raw)

	declared := identifier.Compute(crypto.SHA256, []byte("declared-but-absent"))
	unresolvable := identifier.Compute(crypto.SHA256, []byte("nowhere"))

	unsigned := []Attribute{
		&stubAttribute{kind: "cert-refs", certDigests: []identifier.Digest{knownDigest, declared, unresolvable}},
		&stubAttribute{kind: "refs-only", tokenDER: mintToken(t, dialect.x2Data)},
	}
	ctx := newTestContext(t, nil, unsigned)
	declaredRef := sources.NewCertificateRef(declared)
	ctx.CertificateSource.AddRef(declaredRef)

	src := NewSource(ctx, dialect)

	x2 := src.TimestampsX2()
	if len(x2) != 1 {
		t.Fatalf("x2 timestamps = %d, want 1", len(x2))
	}
	refs := x2[0].References()

	if !hasReference(refs, NewReference(signing.ID(), ObjectCertificate)) {
		t.Error("digest matching an available certificate did not resolve to it")
	}
	if !hasReference(refs, NewReference(declaredRef.ID(), ObjectCertificate)) {
		t.Error("digest matching a declared ref did not resolve to it")
	}
	if len(refs) != 2 {
		t.Errorf("x2 covers %d references, want 2 (unresolvable digest must be omitted)", len(refs))
	}
}

// TestExternalArchiveTimestamp covers the external intake contract.
func TestExternalArchiveTimestamp(t *testing.T) {
	dialect := newStubDialect()
	dialect.signatureSignedDataRefs = []Reference{NewReference("CMS-SD", ObjectSignedData)}

	unsigned := []Attribute{
		&stubAttribute{kind: "signature", tokenDER: mintToken(t, dialect.signatureData)},
		&stubAttribute{kind: "archive", tokenDER: mintToken(t, dialect.archiveData)},
	}
	ctx := newTestContext(t, nil, unsigned)
	src := NewSource(ctx, dialect)

	prior := src.AllTimestamps()
	if len(prior) != 2 {
		t.Fatalf("expected 2 internal timestamps, got %d", len(prior))
	}

	wrong, err := NewToken(mintToken(t, []byte("wrong kind")), KindSignature, nil)
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}
	if err := src.AddExternalTimestamp(wrong); err == nil {
		t.Fatal("expected an error for a non-archive external timestamp")
	} else if !errors.Is(err, ErrUnsupportedTimestampKind) {
		t.Errorf("error %v does not wrap ErrUnsupportedTimestampKind", err)
	}
	if n := len(src.ArchiveTimestamps()); n != 1 {
		t.Fatalf("rejected token mutated the archive list (len %d)", n)
	}

	external, err := NewToken(mintToken(t, []byte("external archive")), KindArchive, nil)
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}
	if err := src.AddExternalTimestamp(external); err != nil {
		t.Fatalf("AddExternalTimestamp failed: %v", err)
	}

	archive := src.ArchiveTimestamps()
	if len(archive) != 2 || archive[1] != external {
		t.Fatalf("external timestamp not appended to the archive list")
	}

	refs := external.References()
	for _, prev := range prior {
		if !hasReference(refs, NewReference(prev.ID(), ObjectTimestamp)) {
			t.Errorf("external timestamp misses prior timestamp %v", prev.ID())
		}
	}
	if !hasReference(refs, NewReference("CMS-SD", ObjectSignedData)) {
		t.Error("external timestamp misses the SignedData references")
	}
}

// TestMalformedTimestampAttribute covers fail-soft behaviour.
func TestMalformedTimestampAttribute(t *testing.T) {
	dialect := newStubDialect()
	signed := []Attribute{
		&stubAttribute{kind: "content"}, // tokenDER nil: scripted parse failure
		&stubAttribute{kind: "content", tokenDER: mintToken(t, dialect.contentData)},
	}
	unsigned := []Attribute{
		&stubAttribute{kind: "unknown-attribute"},
		&stubAttribute{kind: "signature", tokenDER: mintToken(t, dialect.signatureData)},
	}
	ctx := newTestContext(t, signed, unsigned)
	src := NewSource(ctx, dialect)

	if n := len(src.ContentTimestamps()); n != 1 {
		t.Errorf("content timestamps = %d, want 1 (malformed attribute skipped)", n)
	}
	if n := len(src.SignatureTimestamps()); n != 1 {
		t.Errorf("signature timestamps = %d, want 1 (unknown attribute skipped)", n)
	}
}

// TestBuildIdempotence covers at-most-once building.
func TestBuildIdempotence(t *testing.T) {
	dialect := newStubDialect()
	unsigned := []Attribute{
		&stubAttribute{kind: "signature", tokenDER: mintToken(t, dialect.signatureData)},
	}
	ctx := newTestContext(t, nil, unsigned)
	src := NewSource(ctx, dialect)

	first := src.SignatureTimestamps()
	second := src.SignatureTimestamps()
	if len(first) != len(second) {
		t.Fatalf("list lengths differ across calls: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("list element %d differs across calls", i)
		}
	}
	if calls := dialect.calls(); calls != 1 {
		t.Errorf("MakeTimestampToken ran %d times, want 1", calls)
	}
}

// TestConcurrentAccessors covers the run-once contract under concurrency.
func TestConcurrentAccessors(t *testing.T) {
	dialect := newStubDialect()
	unsigned := []Attribute{
		&stubAttribute{kind: "signature", tokenDER: mintToken(t, dialect.signatureData)},
		&stubAttribute{kind: "archive", tokenDER: mintToken(t, dialect.archiveData)},
	}
	ctx := newTestContext(t, nil, unsigned)
	src := NewSource(ctx, dialect)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src.AllTimestamps()
			src.CertificateMapWithinTimestamps(true)
		}()
	}
	wg.Wait()

	if calls := dialect.calls(); calls != 2 {
		t.Errorf("MakeTimestampToken ran %d times, want 2", calls)
	}
}

// TestAllTimestampsOrder covers the concatenation order.
func TestAllTimestampsOrder(t *testing.T) {
	dialect := newStubDialect()
	signed := []Attribute{
		&stubAttribute{kind: "content", tokenDER: mintToken(t, dialect.contentData)},
	}
	unsigned := []Attribute{
		&stubAttribute{kind: "signature", tokenDER: mintToken(t, dialect.signatureData)},
		&stubAttribute{kind: "refs-only", tokenDER: mintToken(t, dialect.x2Data)},
		&stubAttribute{kind: "sig-and-refs", tokenDER: mintToken(t, dialect.x1Data)},
		&stubAttribute{kind: "archive", tokenDER: mintToken(t, dialect.archiveData)},
	}
	ctx := newTestContext(t, signed, unsigned)
	src := NewSource(ctx, dialect)

	all := src.AllTimestamps()
	total := len(src.ContentTimestamps()) + len(src.SignatureTimestamps()) +
		len(src.TimestampsX1()) + len(src.TimestampsX2()) + len(src.ArchiveTimestamps())
	if len(all) != total {
		t.Fatalf("AllTimestamps length = %d, want %d", len(all), total)
	}

	wantKinds := []Kind{KindContent, KindSignature, KindValidationData, KindValidationDataRefsOnly, KindArchive}
	for i, token := range all {
		if token.Kind() != wantKinds[i] {
			t.Errorf("AllTimestamps[%d].Kind = %v, want %v", i, token.Kind(), wantKinds[i])
		}
	}

	// Every timestamp validated against its own data stream.
	for i, token := range all {
		if token.MatchResult() != MatchMatched {
			t.Errorf("AllTimestamps[%d] MatchResult = %v, want matched", i, token.MatchResult())
		}
	}
}

// TestSigAndRefsCoverage covers the x1 reference expansion.
func TestSigAndRefsCoverage(t *testing.T) {
	dialect := newStubDialect()
	certValue := []byte("cert between timestamps")
	unsigned := []Attribute{
		&stubAttribute{kind: "signature", tokenDER: mintToken(t, dialect.signatureData)},
		&stubAttribute{kind: "cert-values", certValues: [][]byte{certValue}},
		&stubAttribute{kind: "sig-and-refs", tokenDER: mintToken(t, dialect.x1Data)},
	}
	ctx := newTestContext(t, nil, unsigned)
	src := NewSource(ctx, dialect)

	x1 := src.TimestampsX1()
	if len(x1) != 1 {
		t.Fatalf("x1 timestamps = %d, want 1", len(x1))
	}
	t1 := src.SignatureTimestamps()[0]

	refs := x1[0].References()
	if !hasReference(refs, NewReference(t1.ID(), ObjectTimestamp)) {
		t.Error("x1 timestamp does not reference the prior signature timestamp")
	}
	if !hasReference(refs, NewReference(identifier.ForEncapsulated(certValue), ObjectCertificate)) {
		t.Error("x1 timestamp misses the encapsulated certificate reference")
	}
}

// TestTimestampValidationDataAttribute covers the xades141 combined
// values attribute.
func TestTimestampValidationDataAttribute(t *testing.T) {
	dialect := newStubDialect()
	certValue := []byte("tsvd cert")
	crl := sources.NewCRLBinary([]byte("tsvd CRL"))
	unsigned := []Attribute{
		&stubAttribute{kind: "signature", tokenDER: mintToken(t, dialect.signatureData)},
		&stubAttribute{kind: "ts-validation-data", certValues: [][]byte{certValue}, crls: []*sources.CRLBinary{crl}},
		&stubAttribute{kind: "archive", tokenDER: mintToken(t, dialect.archiveData)},
	}
	ctx := newTestContext(t, nil, unsigned)
	src := NewSource(ctx, dialect)

	refs := src.ArchiveTimestamps()[0].References()
	if !hasReference(refs, NewReference(identifier.ForEncapsulated(certValue), ObjectCertificate)) {
		t.Error("archive misses the validation-data certificate")
	}
	if !hasReference(refs, NewReference(crl.ID(), ObjectRevocation)) {
		t.Error("archive misses the validation-data CRL")
	}
}

// TestReferenceDedupAcrossTokens covers the per-token dedup invariant.
func TestReferenceDedupAcrossTokens(t *testing.T) {
	dialect := newStubDialect()
	certValue := []byte("repeated value")
	unsigned := []Attribute{
		&stubAttribute{kind: "signature", tokenDER: mintToken(t, dialect.signatureData)},
		&stubAttribute{kind: "cert-values", certValues: [][]byte{certValue, certValue}},
		&stubAttribute{kind: "archive", tokenDER: mintToken(t, dialect.archiveData)},
	}
	ctx := newTestContext(t, nil, unsigned)
	src := NewSource(ctx, dialect)

	for _, token := range src.AllTimestamps() {
		seen := make(map[Reference]int)
		for _, r := range token.References() {
			seen[r]++
			if seen[r] > 1 {
				t.Errorf("token %v covers %v more than once", token.ID(), r)
			}
		}
	}
}

// TestCertificateMapWithinTimestamps covers the synthetic key export.
func TestCertificateMapWithinTimestamps(t *testing.T) {
	dialect := newStubDialect()
	signed := []Attribute{
		&stubAttribute{kind: "content", tokenDER: mintToken(t, dialect.contentData)},
	}
	unsigned := []Attribute{
		&stubAttribute{kind: "signature", tokenDER: mintToken(t, dialect.signatureData)},
		&stubAttribute{kind: "archive", tokenDER: mintToken(t, dialect.archiveData)},
		&stubAttribute{kind: "archive", tokenDER: mintToken(t, dialect.archiveData)},
	}
	ctx := newTestContext(t, signed, unsigned)
	src := NewSource(ctx, dialect)

	full := src.CertificateMapWithinTimestamps(false)
	if len(full) != 4 {
		t.Fatalf("map size = %d, want 4", len(full))
	}
	if _, ok := full["content-timestamp0"]; !ok {
		t.Error("missing key content-timestamp0")
	}
	if _, ok := full["signature-timestamp1"]; !ok {
		t.Error("missing key signature-timestamp1")
	}
	if _, ok := full["archive-timestamp2"]; !ok {
		t.Error("missing key archive-timestamp2")
	}
	if _, ok := full["archive-timestamp3"]; !ok {
		t.Error("missing key archive-timestamp3")
	}

	skipped := src.CertificateMapWithinTimestamps(true)
	if len(skipped) != 3 {
		t.Fatalf("map size with skipped archive = %d, want 3", len(skipped))
	}
	if _, ok := skipped["archive-timestamp3"]; ok {
		t.Error("last archive entry must be omitted")
	}
}

// TestTimestampSourcesAggregation covers the per-token source accessors.
func TestTimestampSourcesAggregation(t *testing.T) {
	dialect := newStubDialect()
	unsigned := []Attribute{
		&stubAttribute{kind: "signature", tokenDER: mintToken(t, dialect.signatureData)},
	}
	ctx := newTestContext(t, nil, unsigned)
	src := NewSource(ctx, dialect)

	crls := src.TimestampCRLSources()
	ocsps := src.TimestampOCSPSources()
	if crls == nil || ocsps == nil {
		t.Fatal("expected aggregated sources")
	}
	// The dummy TSA embeds no revocation material by default.
	if n := len(crls.Binaries()); n != 0 {
		t.Errorf("aggregated CRL binaries = %d, want 0", n)
	}
}
