// Package etsi provides ETSI XML structures for electronic signatures.
//
// This file implements the XAdES 1.4.1 extension structures defined in
// ETSI TS 101 903 V1.4.1.
package etsi

import "encoding/xml"

// XAdES141Namespace is the XAdES 1.4.1 extension namespace.
const XAdES141Namespace = "http://uri.etsi.org/01903/v1.4.1#"

// ValidationDataType carries the validation material collected for a
// timestamp token.
type ValidationDataType struct {
	CertificateValues *CertificateValuesType `xml:"http://uri.etsi.org/01903/v1.3.2# CertificateValues,omitempty"`
	RevocationValues  *RevocationValuesType  `xml:"http://uri.etsi.org/01903/v1.3.2# RevocationValues,omitempty"`
	ID                string                 `xml:"Id,attr,omitempty"`
	URI               string                 `xml:"URI,attr,omitempty"`
}

// TimeStampValidationData is the element form of ValidationDataType.
type TimeStampValidationData struct {
	XMLName xml.Name `xml:"http://uri.etsi.org/01903/v1.4.1# TimeStampValidationData"`
	ValidationDataType
}

// ArchiveTimeStamp141 is the archive timestamp element of the 1.4.1
// namespace.
type ArchiveTimeStamp141 struct {
	XMLName xml.Name `xml:"http://uri.etsi.org/01903/v1.4.1# ArchiveTimeStamp"`
	XAdESTimeStampType
}
