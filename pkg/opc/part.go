package opc

import (
	"archive/zip"
	"io"

	"github.com/opcbox/opcbox/pkg/errors"
	"github.com/opcbox/opcbox/pkg/partname"
	"github.com/opcbox/opcbox/pkg/rels"
)

// Part is a named content stream with a content type and its own
// relationship collection. Parts are exclusively owned by their Package;
// a part's relationship state is never visible through any other part.
type Part struct {
	name        partname.PartName
	contentType string
	pkg         *Package

	// Content bytes. For parts read from a container, data stays nil until
	// the first Content call pulls it from the archive entry.
	data   []byte
	loaded bool
	entry  *zip.File

	// Companion relationship document. collection stays nil until the first
	// Relationships call; the nil check is the part-scoped one-time
	// initialization guard.
	collection *rels.Collection
	relsEntry  *zip.File
}

// Name returns the part's name.
func (p *Part) Name() partname.PartName { return p.name }

// ContentType returns the part's declared media type.
func (p *Part) ContentType() string { return p.contentType }

// Content returns the part's bytes. For parts loaded from a container the
// bytes are read lazily on first call and cached.
func (p *Part) Content() ([]byte, error) {
	if err := p.pkg.ensureLive(); err != nil {
		return nil, err
	}
	if !p.loaded {
		data, err := readEntry(p.entry)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeContainer, err, "read part %q", p.name)
		}
		p.data = data
		p.loaded = true
	}
	return p.data, nil
}

// SetContent replaces the part's bytes.
func (p *Part) SetContent(data []byte) error {
	if err := p.pkg.ensureWritable(); err != nil {
		return err
	}
	p.data = data
	p.loaded = true
	p.pkg.dirty = true
	return nil
}

// Relationships returns the part's relationship collection, materializing it
// from the companion metadata entry on first call (empty when none exists)
// and caching it for the part's lifetime.
func (p *Part) Relationships() (*rels.Collection, error) {
	if err := p.pkg.ensureLive(); err != nil {
		return nil, err
	}
	if p.collection == nil {
		c, err := loadCollection(p.relsEntry, p.name)
		if err != nil {
			return nil, err
		}
		p.collection = c
	}
	return p.collection, nil
}

// Relationship returns the relationship with the given id, or nil.
func (p *Part) Relationship(id string) (*rels.Relationship, error) {
	c, err := p.Relationships()
	if err != nil {
		return nil, err
	}
	return c.ByID(id), nil
}

// RelationshipsByType returns the part's relationships of exactly the given
// type, in insertion order.
func (p *Part) RelationshipsByType(relType string) ([]*rels.Relationship, error) {
	c, err := p.Relationships()
	if err != nil {
		return nil, err
	}
	return c.ByType(relType), nil
}

// HasRelationships reports whether the part has at least one relationship.
func (p *Part) HasRelationships() (bool, error) {
	c, err := p.Relationships()
	if err != nil {
		return false, err
	}
	return c.Len() > 0, nil
}

// AddRelationship adds an internal relationship to another part of the same
// package, with automatic id allocation. Targeting the part itself is legal.
func (p *Part) AddRelationship(target partname.PartName, relType string) (*rels.Relationship, error) {
	if err := p.pkg.ensureWritable(); err != nil {
		return nil, err
	}
	c, err := p.Relationships()
	if err != nil {
		return nil, err
	}
	p.pkg.dirty = true
	return c.Add(target.String(), rels.ModeInternal, relType), nil
}

// AddExternalRelationship adds a relationship to an opaque external URI,
// with automatic id allocation. The target is normalized but never resolved
// against the container.
func (p *Part) AddExternalRelationship(target, relType string) (*rels.Relationship, error) {
	if err := p.pkg.ensureWritable(); err != nil {
		return nil, err
	}
	c, err := p.Relationships()
	if err != nil {
		return nil, err
	}
	p.pkg.dirty = true
	return c.Add(partname.NormalizeTarget(target), rels.ModeExternal, relType), nil
}

// RemoveRelationship removes the relationship with the given id; a miss is
// a no-op.
func (p *Part) RemoveRelationship(id string) error {
	if err := p.pkg.ensureWritable(); err != nil {
		return err
	}
	c, err := p.Relationships()
	if err != nil {
		return err
	}
	c.Remove(id)
	p.pkg.dirty = true
	return nil
}

// readEntry reads an archive entry fully; a nil entry yields nil bytes.
func readEntry(f *zip.File) ([]byte, error) {
	if f == nil {
		return nil, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// loadCollection parses a companion relationship entry, or returns a fresh
// empty collection when the part has none.
func loadCollection(entry *zip.File, source partname.PartName) (*rels.Collection, error) {
	if entry == nil {
		return rels.NewCollection(source), nil
	}
	rc, err := entry.Open()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeContainer, err,
			"read relationship document %q", entry.Name)
	}
	defer rc.Close()
	return rels.Parse(rc, source)
}
