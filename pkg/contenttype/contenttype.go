// Package contenttype implements the content-type registry of a package:
// the mapping that resolves every part to exactly one media type through
// extension defaults and per-part overrides, and the codec for the
// [Content_Types].xml manifest carrying it.
package contenttype

import (
	"strings"

	"github.com/opcbox/opcbox/pkg/errors"
	"github.com/opcbox/opcbox/pkg/partname"
)

// ManifestName is the container entry holding the manifest. It is not a part
// name (no leading-slash part exists for it); the constant is the literal
// archive entry name.
const ManifestName = "[Content_Types].xml"

// Media types every package carries defaults for.
const (
	RelationshipsType = "application/vnd.openxmlformats-package.relationships+xml"
	XMLType           = "application/xml"
)

// Registry resolves part names to media types. Extension lookups are
// case-insensitive; overrides are keyed by the exact (case-folded) part name.
type Registry struct {
	defaults  map[string]string // extension (lower, no dot) -> media type
	overrides map[string]string // part name key -> media type
	caseNames map[string]string // part name key -> name as written, for output
}

// New returns a registry seeded with the mandatory defaults for relationship
// documents and XML parts.
func New() *Registry {
	r := &Registry{
		defaults:  make(map[string]string),
		overrides: make(map[string]string),
		caseNames: make(map[string]string),
	}
	r.AddDefault("rels", RelationshipsType)
	r.AddDefault("xml", XMLType)
	return r
}

// AddDefault registers a default media type for an extension.
func (r *Registry) AddDefault(ext, mediaType string) {
	r.defaults[strings.ToLower(strings.TrimPrefix(ext, "."))] = mediaType
}

// Add records the media type for a part. When the part's extension already
// defaults to the same type nothing is written; otherwise an override entry
// is added automatically.
func (r *Registry) Add(name partname.PartName, mediaType string) {
	if def, ok := r.defaults[name.Ext()]; ok && def == mediaType {
		delete(r.overrides, name.Key())
		delete(r.caseNames, name.Key())
		return
	}
	r.overrides[name.Key()] = mediaType
	r.caseNames[name.Key()] = name.String()
}

// Remove drops the override for a part, if any. Extension defaults are kept:
// other parts may rely on them.
func (r *Registry) Remove(name partname.PartName) {
	delete(r.overrides, name.Key())
	delete(r.caseNames, name.Key())
}

// TypeOf resolves a part to its media type: exact override first, then the
// extension default table. A part neither covers is a structural error.
func (r *Registry) TypeOf(name partname.PartName) (string, error) {
	if t, ok := r.overrides[name.Key()]; ok {
		return t, nil
	}
	if t, ok := r.defaults[name.Ext()]; ok {
		return t, nil
	}
	return "", errors.New(errors.ErrCodeUnknownContentType,
		"no content type declared for part %q", name)
}

// Covers reports whether TypeOf would succeed for name.
func (r *Registry) Covers(name partname.PartName) bool {
	_, err := r.TypeOf(name)
	return err == nil
}
