// Package secxml centralizes the XML parser configuration used for every
// piece of container metadata (relationship documents and the content-type
// manifest).
//
// encoding/xml never loads DTDs and never resolves external entities, so the
// classic entity-expansion attacks cannot fetch resources or blow up memory.
// The remaining concern is custom entities declared in an inline DTD: the
// decoder cannot expand them, and with Strict left on it would abort the
// whole document. Decoders returned here run with Strict disabled so an
// unknown entity reference survives as literal text, and callers use
// HasEntityRef to drop any record whose fields still carry one. A record
// definable only through entity expansion is therefore silently absent, with
// no error raised and no partial entry produced.
package secxml

import (
	"encoding/xml"
	"io"
	"regexp"
)

// entityRef matches an unresolved XML entity reference. The five predefined
// entities (amp, lt, gt, apos, quot) are expanded by the decoder before this
// pattern ever sees the text, so a match always means a custom entity.
var entityRef = regexp.MustCompile(`&[A-Za-z_][A-Za-z0-9._-]*;`)

// NewDecoder returns an xml.Decoder hardened for untrusted container
// metadata. All metadata parsing in this module goes through here.
func NewDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.Strict = false
	return d
}

// HasEntityRef reports whether s contains an unresolved entity reference.
// Records with such fields are dropped by the metadata codecs.
func HasEntityRef(s string) bool {
	return entityRef.MatchString(s)
}
