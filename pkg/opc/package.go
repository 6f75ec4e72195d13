package opc

import (
	"maps"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/opcbox/opcbox/pkg/errors"
	"github.com/opcbox/opcbox/pkg/partname"
	"github.com/opcbox/opcbox/pkg/rels"
)

// CreatePart registers a new part under name with the given media type.
// The name must be free (comparison is case-insensitive) and must not be a
// relationship document name; those are managed by the engine. A content
// type override is recorded automatically whenever the extension defaults
// don't already cover the type.
func (p *Package) CreatePart(name partname.PartName, mediaType string) (*Part, error) {
	if err := p.ensureWritable(); err != nil {
		return nil, err
	}
	if mediaType == "" {
		return nil, errors.New(errors.ErrCodeUnknownContentType,
			"part %q needs a content type", name)
	}
	if name.IsRelsName() {
		return nil, errors.New(errors.ErrCodePartName,
			"%q is reserved for relationship metadata", name)
	}
	if _, exists := p.parts[name.Key()]; exists {
		return nil, errors.New(errors.ErrCodeDuplicatePart, "part %q already exists", name)
	}

	p.types.Add(name, mediaType)
	part := &Part{
		name:        name,
		contentType: mediaType,
		pkg:         p,
		loaded:      true,
	}
	p.parts[name.Key()] = part
	p.dirty = true
	return part, nil
}

// RemovePart deletes a part, its content-type override, and its companion
// relationship metadata. A miss is a no-op.
func (p *Package) RemovePart(name partname.PartName) error {
	if err := p.ensureWritable(); err != nil {
		return err
	}
	if _, exists := p.parts[name.Key()]; !exists {
		return nil
	}
	delete(p.parts, name.Key())
	p.types.Remove(name)
	p.dirty = true
	return nil
}

// Part returns the part with the given name, or nil when absent. A closed
// package has no parts.
func (p *Package) Part(name partname.PartName) *Part {
	if p.state == stateClosed {
		return nil
	}
	return p.parts[name.Key()]
}

// PartsByName returns the parts whose names match the glob pattern
// (doublestar syntax, e.g. "/xl/worksheets/*.xml"), sorted by name.
func (p *Package) PartsByName(pattern string) []*Part {
	var out []*Part
	for _, part := range p.Parts() {
		if ok, err := doublestar.Match(pattern, part.name.String()); err == nil && ok {
			out = append(out, part)
		}
	}
	return out
}

// Parts returns every part, sorted by case-folded name.
func (p *Package) Parts() []*Part {
	if p.state == stateClosed {
		return nil
	}
	out := make([]*Part, 0, len(p.parts))
	for _, key := range slices.Sorted(maps.Keys(p.parts)) {
		out = append(out, p.parts[key])
	}
	return out
}

// ContentType resolves a part name through the package's registry.
func (p *Package) ContentType(name partname.PartName) (string, error) {
	return p.types.TypeOf(name)
}

// Relationships returns the package root's relationship collection.
func (p *Package) Relationships() *rels.Collection { return p.root }

// Relationship returns the root relationship with the given id, or nil.
func (p *Package) Relationship(id string) *rels.Relationship { return p.root.ByID(id) }

// RelationshipsByType returns the root relationships of exactly the given
// type, in insertion order.
func (p *Package) RelationshipsByType(relType string) []*rels.Relationship {
	return p.root.ByType(relType)
}

// AddRelationship adds an internal relationship from the package root to a
// part, with automatic id allocation.
func (p *Package) AddRelationship(target partname.PartName, relType string) (*rels.Relationship, error) {
	if err := p.ensureWritable(); err != nil {
		return nil, err
	}
	p.dirty = true
	return p.root.Add(target.String(), rels.ModeInternal, relType), nil
}

// AddExternalRelationship adds a root relationship to an opaque external URI.
func (p *Package) AddExternalRelationship(target, relType string) (*rels.Relationship, error) {
	if err := p.ensureWritable(); err != nil {
		return nil, err
	}
	p.dirty = true
	return p.root.Add(partname.NormalizeTarget(target), rels.ModeExternal, relType), nil
}

// RemoveRelationship removes a root relationship by id; a miss is a no-op.
func (p *Package) RemoveRelationship(id string) error {
	if err := p.ensureWritable(); err != nil {
		return err
	}
	p.root.Remove(id)
	p.dirty = true
	return nil
}
