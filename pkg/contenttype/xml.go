package contenttype

import (
	"encoding/xml"
	"io"
	"maps"
	"slices"

	"github.com/opcbox/opcbox/internal/secxml"
	"github.com/opcbox/opcbox/pkg/errors"
	"github.com/opcbox/opcbox/pkg/partname"
)

const typesNS = "http://schemas.openxmlformats.org/package/2006/content-types"

// xmlTypes maps the Types element of the content-type manifest.
type xmlTypes struct {
	XMLName   xml.Name      `xml:"Types"`
	XMLNS     string        `xml:"xmlns,attr"`
	Defaults  []xmlDefault  `xml:"Default"`
	Overrides []xmlOverride `xml:"Override"`
}

type xmlDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type xmlOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// Parse reads a content-type manifest into a fresh registry. Records whose
// fields are only reachable through entity expansion are dropped silently;
// anything else malformed is a format error.
func Parse(r io.Reader) (*Registry, error) {
	var doc xmlTypes
	if err := secxml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeContentTypes, err, "parse content-type manifest")
	}

	reg := New()
	for _, d := range doc.Defaults {
		if secxml.HasEntityRef(d.Extension) || secxml.HasEntityRef(d.ContentType) {
			continue
		}
		if d.Extension == "" || d.ContentType == "" {
			return nil, errors.New(errors.ErrCodeContentTypes,
				"default entry missing extension or content type")
		}
		reg.AddDefault(d.Extension, d.ContentType)
	}
	for _, o := range doc.Overrides {
		if secxml.HasEntityRef(o.PartName) || secxml.HasEntityRef(o.ContentType) {
			continue
		}
		name, err := partname.Parse(o.PartName)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeContentTypes, err,
				"override entry has an invalid part name")
		}
		if o.ContentType == "" {
			return nil, errors.New(errors.ErrCodeContentTypes,
				"override entry for %q missing content type", o.PartName)
		}
		reg.overrides[name.Key()] = o.ContentType
		reg.caseNames[name.Key()] = name.String()
	}
	return reg, nil
}

// Encode serializes the registry as a content-type manifest. Output is
// deterministic: defaults and overrides are emitted in sorted order.
func (r *Registry) Encode(w io.Writer) error {
	doc := xmlTypes{XMLNS: typesNS}

	for _, ext := range slices.Sorted(maps.Keys(r.defaults)) {
		doc.Defaults = append(doc.Defaults, xmlDefault{
			Extension:   ext,
			ContentType: r.defaults[ext],
		})
	}
	for _, key := range slices.Sorted(maps.Keys(r.overrides)) {
		doc.Overrides = append(doc.Overrides, xmlOverride{
			PartName:    r.caseNames[key],
			ContentType: r.overrides[key],
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return errors.Wrap(errors.ErrCodeContentTypes, err, "write content-type manifest")
	}
	enc := xml.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(errors.ErrCodeContentTypes, err, "encode content-type manifest")
	}
	return enc.Close()
}
