// Package identifier provides stable string identities for validation
// objects: certificates, CRLs, OCSP responses and digest references.
package identifier

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Identifier is an opaque stable identity derived from the bytes of a
// validation object. Two identifiers are the same object exactly when the
// strings are equal.
type Identifier string

// ForEncapsulated derives an identifier from the raw encoding of an
// encapsulated value (a certificate, CRL or OCSP response carried inside
// the signature or inside a timestamp token).
func ForEncapsulated(raw []byte) Identifier {
	sum := sha256.Sum256(raw)
	return Identifier("V-" + hex.EncodeToString(sum[:]))
}

// ForReference derives an identifier for a value that is only known through
// a digest (a certificate ref or revocation ref). The identifier is a
// digest of the digest, so refs with the same algorithm and value collapse
// to the same identity while never colliding with encapsulated values.
func ForReference(d Digest) Identifier {
	h := sha256.New()
	h.Write([]byte(d.Algorithm.String()))
	h.Write(d.Value)
	return Identifier("R-" + hex.EncodeToString(h.Sum(nil)))
}

// Digest pairs a hash algorithm with a digest value.
type Digest struct {
	Algorithm crypto.Hash
	Value     []byte
}

// NewDigest creates a Digest from an algorithm and value.
func NewDigest(alg crypto.Hash, value []byte) Digest {
	return Digest{Algorithm: alg, Value: value}
}

// Compute digests data with alg.
func Compute(alg crypto.Hash, data []byte) Digest {
	h := alg.New()
	h.Write(data)
	return Digest{Algorithm: alg, Value: h.Sum(nil)}
}

// Equal reports whether two digests are structurally equal.
func (d Digest) Equal(o Digest) bool {
	return d.Algorithm == o.Algorithm && bytes.Equal(d.Value, o.Value)
}

// IsZero reports whether the digest is empty.
func (d Digest) IsZero() bool {
	return d.Algorithm == 0 && len(d.Value) == 0
}

// String returns a printable form of the digest.
func (d Digest) String() string {
	return fmt.Sprintf("%s:%s", d.Algorithm, hex.EncodeToString(d.Value))
}
