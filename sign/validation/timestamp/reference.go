// Package timestamp discovers, classifies and validates the timestamp
// tokens embedded in an advanced signature. The core is dialect-agnostic:
// the CAdES and XAdES specifics are injected as a Dialect implementation.
package timestamp

import (
	"github.com/LuisAnazgo/dss/sign/validation/identifier"
)

// ObjectType says what kind of object a timestamped reference points to.
type ObjectType int

const (
	ObjectSignedData ObjectType = iota
	ObjectSignature
	ObjectCertificate
	ObjectRevocation
	ObjectTimestamp
)

// String returns the string representation of the object type.
func (t ObjectType) String() string {
	switch t {
	case ObjectSignedData:
		return "signed-data"
	case ObjectSignature:
		return "signature"
	case ObjectCertificate:
		return "certificate"
	case ObjectRevocation:
		return "revocation"
	case ObjectTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Reference is a logical pointer to one object covered by a timestamp.
// Equality is structural: two references are the same when both fields
// are equal.
type Reference struct {
	ObjectID identifier.Identifier
	Type     ObjectType
}

// NewReference creates a reference.
func NewReference(id identifier.Identifier, t ObjectType) Reference {
	return Reference{ObjectID: id, Type: t}
}

// ReferenceList is an ordered, duplicate-free accumulator of references.
// References are only ever appended; the append order is observable.
type ReferenceList struct {
	refs []Reference
	seen map[Reference]bool
}

// NewReferenceList creates an empty list.
func NewReferenceList() *ReferenceList {
	return &ReferenceList{seen: make(map[Reference]bool)}
}

// Add appends ref unless a structurally equal reference is already
// present. It reports whether the reference was added.
func (l *ReferenceList) Add(ref Reference) bool {
	if l.seen == nil {
		l.seen = make(map[Reference]bool)
	}
	if l.seen[ref] {
		return false
	}
	l.seen[ref] = true
	l.refs = append(l.refs, ref)
	return true
}

// AddAll appends every reference of refs, preserving order and refusing
// duplicates.
func (l *ReferenceList) AddAll(refs []Reference) {
	for _, r := range refs {
		l.Add(r)
	}
}

// Contains reports whether a structurally equal reference is present.
func (l *ReferenceList) Contains(ref Reference) bool {
	return l.seen[ref]
}

// Len returns the number of references.
func (l *ReferenceList) Len() int {
	return len(l.refs)
}

// List returns the references in append order.
func (l *ReferenceList) List() []Reference {
	out := make([]Reference, len(l.refs))
	copy(out, l.refs)
	return out
}
