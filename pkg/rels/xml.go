package rels

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/opcbox/opcbox/internal/secxml"
	"github.com/opcbox/opcbox/pkg/errors"
	"github.com/opcbox/opcbox/pkg/partname"
)

// Namespace is the relationships namespace of ECMA-376 part 2.
const Namespace = "http://schemas.openxmlformats.org/package/2006/relationships"

// xmlRelationships maps a relationship document.
type xmlRelationships struct {
	XMLName       xml.Name          `xml:"Relationships"`
	XMLNS         string            `xml:"xmlns,attr"`
	Relationships []xmlRelationship `xml:"Relationship"`
}

type xmlRelationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// Parse reads a relationship document into a new collection owned by source
// (zero PartName for the package root). Document order is kept as insertion
// order.
//
// Parsing is hardened: DTDs and external entities are never expanded, and a
// record whose Id, Type, or Target is only reachable through an entity
// reference is silently absent from the result. No error is raised for such
// records and no partial entry is produced.
func Parse(r io.Reader, source partname.PartName) (*Collection, error) {
	var doc xmlRelationships
	if err := secxml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRelationships, err,
			"parse relationship document for %q", sourceLabel(source))
	}

	c := NewCollection(source)
	for _, rec := range doc.Relationships {
		if secxml.HasEntityRef(rec.ID) || secxml.HasEntityRef(rec.Type) || secxml.HasEntityRef(rec.Target) {
			continue
		}
		if rec.ID == "" || rec.Type == "" || rec.Target == "" {
			return nil, errors.New(errors.ErrCodeRelationships,
				"relationship record for %q missing Id, Type, or Target", sourceLabel(source))
		}
		mode, err := parseMode(rec.TargetMode)
		if err != nil {
			return nil, err
		}
		// Targets are stored in normalized form so that what Parse yields is
		// exactly what Encode will emit: round trips are idempotent.
		target := partname.NormalizeTarget(rec.Target)
		if _, err := c.AddWithID(rec.ID, target, mode, rec.Type); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Encode serializes the collection as a relationship document. On-disk
// order equals insertion order. TargetMode is written only for external
// targets; internal is the wire default.
func (c *Collection) Encode(w io.Writer) error {
	doc := xmlRelationships{XMLNS: Namespace}
	for _, r := range c.order {
		rec := xmlRelationship{
			ID:     r.id,
			Type:   r.relTyp,
			Target: partname.NormalizeTarget(r.target),
		}
		if r.mode == ModeExternal {
			rec.TargetMode = ModeExternal.String()
		}
		doc.Relationships = append(doc.Relationships, rec)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return errors.Wrap(errors.ErrCodeRelationships, err,
			"write relationship document for %q", c.sourceLabel())
	}
	enc := xml.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(errors.ErrCodeRelationships, err,
			"encode relationship document for %q", c.sourceLabel())
	}
	return enc.Close()
}

func parseMode(s string) (TargetMode, error) {
	switch {
	case s == "" || strings.EqualFold(s, "Internal"):
		return ModeInternal, nil
	case strings.EqualFold(s, "External"):
		return ModeExternal, nil
	default:
		return ModeInternal, errors.New(errors.ErrCodeRelationships,
			"unknown TargetMode %q", s)
	}
}

func sourceLabel(source partname.PartName) string {
	if source.IsZero() {
		return "package root"
	}
	return source.String()
}
