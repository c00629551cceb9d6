// Package timestamps provides RFC 3161 timestamp token support.
package timestamps

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/fullsailor/pkcs7"
)

// OIDs for timestamp structures
var (
	OIDContentType        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	OIDMessageDigest      = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	OIDSigningTime        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
	OIDSignedData         = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	OIDTSTInfo            = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 4}
	OIDSignatureTimeStamp = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14}

	// Hash algorithms
	OIDSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	OIDSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	OIDSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	OIDSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
)

// Common errors
var (
	ErrTimestampFailed   = errors.New("timestamp request failed")
	ErrTimestampRejected = errors.New("timestamp request rejected")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrTimestampMismatch = errors.New("timestamp message imprint mismatch")
	ErrNotTimestampToken = errors.New("encapsulated content is not a TSTInfo")
)

// AlgorithmIdentifier represents an algorithm with parameters.
type AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

// MessageImprint represents the hash of the data covered by a timestamp.
type MessageImprint struct {
	HashAlgorithm AlgorithmIdentifier
	HashedMessage []byte
}

// Hash returns the Go hash corresponding to the imprint algorithm, or 0
// when the algorithm is not recognised.
func (mi MessageImprint) Hash() crypto.Hash {
	return HashFromOID(mi.HashAlgorithm.Algorithm)
}

// Matches reports whether data hashes to the imprint value under the
// imprint algorithm.
func (mi MessageImprint) Matches(data []byte) bool {
	alg := mi.Hash()
	if alg == 0 || !alg.Available() {
		return false
	}
	h := alg.New()
	h.Write(data)
	return bytes.Equal(h.Sum(nil), mi.HashedMessage)
}

// TimeStampReq represents a timestamp request (RFC 3161).
type TimeStampReq struct {
	Version        int
	MessageImprint MessageImprint
	ReqPolicy      asn1.ObjectIdentifier `asn1:"optional"`
	Nonce          *big.Int              `asn1:"optional"`
	CertReq        bool                  `asn1:"optional,default:false"`
	Extensions     []Extension           `asn1:"optional,implicit,tag:0"`
}

// TimeStampResp represents a timestamp response (RFC 3161).
type TimeStampResp struct {
	Status         PKIStatusInfo
	TimeStampToken asn1.RawValue `asn1:"optional"`
}

// PKIStatusInfo represents the status of a PKI operation.
type PKIStatusInfo struct {
	Status       int
	StatusString []string       `asn1:"optional"`
	FailInfo     asn1.BitString `asn1:"optional"`
}

// TSTInfo represents the timestamp token info.
type TSTInfo struct {
	Version        int
	Policy         asn1.ObjectIdentifier
	MessageImprint MessageImprint
	SerialNumber   *big.Int
	GenTime        time.Time
	Accuracy       Accuracy      `asn1:"optional"`
	Ordering       bool          `asn1:"optional,default:false"`
	Nonce          *big.Int      `asn1:"optional"`
	TSA            asn1.RawValue `asn1:"optional,explicit,tag:0"`
	Extensions     []Extension   `asn1:"optional,implicit,tag:1"`
}

// Accuracy represents timestamp accuracy.
type Accuracy struct {
	Seconds int `asn1:"optional"`
	Millis  int `asn1:"optional,implicit,tag:0"`
	Micros  int `asn1:"optional,implicit,tag:1"`
}

// Extension represents an X.509 extension.
type Extension struct {
	ExtnID    asn1.ObjectIdentifier
	Critical  bool `asn1:"optional,default:false"`
	ExtnValue []byte
}

// HashFromOID maps a digest algorithm OID to a Go hash. Returns 0 for
// unrecognised OIDs.
func HashFromOID(oid asn1.ObjectIdentifier) crypto.Hash {
	switch {
	case oid.Equal(OIDSHA1):
		return crypto.SHA1
	case oid.Equal(OIDSHA256):
		return crypto.SHA256
	case oid.Equal(OIDSHA384):
		return crypto.SHA384
	case oid.Equal(OIDSHA512):
		return crypto.SHA512
	}
	return 0
}

// OIDFromHash maps a Go hash to its digest algorithm OID.
func OIDFromHash(alg crypto.Hash) asn1.ObjectIdentifier {
	switch alg {
	case crypto.SHA1:
		return OIDSHA1
	case crypto.SHA256:
		return OIDSHA256
	case crypto.SHA384:
		return OIDSHA384
	case crypto.SHA512:
		return OIDSHA512
	}
	return nil
}

// TimestampRequestOptions configures a timestamp request.
type TimestampRequestOptions struct {
	HashAlgorithm crypto.Hash
	Policy        asn1.ObjectIdentifier
	IncludeNonce  bool
	RequestCerts  bool
}

// DefaultTimestampRequestOptions returns default options.
func DefaultTimestampRequestOptions() *TimestampRequestOptions {
	return &TimestampRequestOptions{
		HashAlgorithm: crypto.SHA256,
		IncludeNonce:  true,
		RequestCerts:  true,
	}
}

// CreateTimestampRequest creates a DER-encoded timestamp request for data.
func CreateTimestampRequest(data []byte, opts *TimestampRequestOptions) ([]byte, error) {
	h := opts.HashAlgorithm.New()
	h.Write(data)
	digest := h.Sum(nil)

	req := TimeStampReq{
		Version: 1,
		MessageImprint: MessageImprint{
			HashAlgorithm: AlgorithmIdentifier{
				Algorithm:  OIDFromHash(opts.HashAlgorithm),
				Parameters: asn1.RawValue{Tag: 5}, // NULL
			},
			HashedMessage: digest,
		},
		CertReq: opts.RequestCerts,
	}

	if len(opts.Policy) > 0 {
		req.ReqPolicy = opts.Policy
	}

	if opts.IncludeNonce {
		nonce, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
		if err != nil {
			return nil, err
		}
		req.Nonce = nonce
	}

	return asn1.Marshal(req)
}

// ExtractTSTInfo extracts the TSTInfo from a timestamp token.
func ExtractTSTInfo(tokenData []byte) (*TSTInfo, error) {
	var contentInfo struct {
		ContentType asn1.ObjectIdentifier
		Content     asn1.RawValue `asn1:"explicit,tag:0"`
	}
	if _, err := asn1.Unmarshal(tokenData, &contentInfo); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}
	if !contentInfo.ContentType.Equal(OIDSignedData) {
		return nil, fmt.Errorf("%w: content type %v", ErrInvalidTimestamp, contentInfo.ContentType)
	}

	var signedData struct {
		Version          int
		DigestAlgorithms asn1.RawValue
		EncapContentInfo struct {
			EContentType asn1.ObjectIdentifier
			EContent     asn1.RawValue `asn1:"explicit,optional,tag:0"`
		}
		Certificates asn1.RawValue `asn1:"optional,implicit,tag:0"`
		CRLs         asn1.RawValue `asn1:"optional,implicit,tag:1"`
		SignerInfos  asn1.RawValue
	}
	if _, err := asn1.Unmarshal(contentInfo.Content.Bytes, &signedData); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}
	if !signedData.EncapContentInfo.EContentType.Equal(OIDTSTInfo) {
		return nil, ErrNotTimestampToken
	}

	var eContent []byte
	if _, err := asn1.Unmarshal(signedData.EncapContentInfo.EContent.Bytes, &eContent); err != nil {
		return nil, fmt.Errorf("failed to parse TSTInfo: %w", err)
	}

	var tstInfo TSTInfo
	if _, err := asn1.Unmarshal(eContent, &tstInfo); err != nil {
		return nil, fmt.Errorf("failed to parse TSTInfo: %w", err)
	}

	return &tstInfo, nil
}

// TimestampToken represents a parsed timestamp token together with the
// validation material embedded in its SignedData.
type TimestampToken struct {
	Raw          []byte
	TSTInfo      *TSTInfo
	Certificates []*x509.Certificate
	CRLs         [][]byte
	SignerCert   *x509.Certificate
}

// ParseTimestampToken parses a timestamp token. The TSTInfo must parse for
// the token to be usable; missing or malformed embedded material is
// tolerated.
func ParseTimestampToken(data []byte) (*TimestampToken, error) {
	tstInfo, err := ExtractTSTInfo(data)
	if err != nil {
		return nil, err
	}

	token := &TimestampToken{
		Raw:     data,
		TSTInfo: tstInfo,
	}

	p7, err := pkcs7.Parse(data)
	if err != nil {
		return token, nil
	}

	token.Certificates = p7.Certificates
	token.SignerCert = p7.GetOnlySigner()
	for _, crl := range p7.CRLs {
		der, err := asn1.Marshal(crl)
		if err != nil {
			continue
		}
		token.CRLs = append(token.CRLs, der)
	}

	return token, nil
}

// GenTime returns the generation time asserted by the token.
func (t *TimestampToken) GenTime() time.Time {
	return t.TSTInfo.GenTime
}

// Imprint returns the message imprint the token binds.
func (t *TimestampToken) Imprint() MessageImprint {
	return t.TSTInfo.MessageImprint
}
