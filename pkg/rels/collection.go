package rels

import (
	"fmt"

	"github.com/opcbox/opcbox/pkg/errors"
	"github.com/opcbox/opcbox/pkg/partname"
)

// Collection is the ordered set of relationships belonging to one source:
// a part, or the package root (zero source name). It maintains the by-id and
// by-type indices and owns identifier allocation.
//
// Not safe for concurrent use; the engine assumes caller synchronization.
type Collection struct {
	source partname.PartName
	order  []*Relationship
	byID   map[string]*Relationship

	// nextSuffix is the allocation high-water mark. It only grows, so ids
	// freed by Remove are never reissued, even across many mutation rounds.
	nextSuffix int
}

// NewCollection returns an empty collection owned by source. Pass the zero
// PartName for the package root.
func NewCollection(source partname.PartName) *Collection {
	return &Collection{
		source: source,
		byID:   make(map[string]*Relationship),
	}
}

// Source returns the owning part's name (zero for the package root).
func (c *Collection) Source() partname.PartName { return c.source }

// Add appends a relationship with an allocated identifier and returns it.
// The target is stored as given; self-referential targets are legal.
func (c *Collection) Add(target string, mode TargetMode, relType string) *Relationship {
	r, _ := c.AddWithID(c.allocID(), target, mode, relType)
	return r
}

// AddWithID appends a relationship under an explicit identifier. A duplicate
// id within the collection is a format error.
func (c *Collection) AddWithID(id, target string, mode TargetMode, relType string) (*Relationship, error) {
	if id == "" {
		return nil, errors.New(errors.ErrCodeRelationships, "relationship id is empty")
	}
	if _, exists := c.byID[id]; exists {
		return nil, errors.New(errors.ErrCodeDuplicateRelID,
			"relationship id %q already present in collection for %q", id, c.sourceLabel())
	}
	r := &Relationship{
		id:     id,
		relTyp: relType,
		target: target,
		mode:   mode,
		source: c.source,
	}
	c.order = append(c.order, r)
	c.byID[id] = r
	if n := idSuffix(id); n >= c.nextSuffix {
		c.nextSuffix = n + 1
	}
	return r, nil
}

// Remove deletes the relationship with the given id. Removing an absent id
// is a no-op: lookup misses are not errors. The freed id is never reused.
func (c *Collection) Remove(id string) {
	if _, ok := c.byID[id]; !ok {
		return
	}
	delete(c.byID, id)
	for i, r := range c.order {
		if r.id == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// ByID returns the relationship with the given id, or nil.
func (c *Collection) ByID(id string) *Relationship {
	return c.byID[id]
}

// ByType returns the relationships of exactly the given type, in insertion
// order. An unknown type yields an empty slice.
func (c *Collection) ByType(relType string) []*Relationship {
	var out []*Relationship
	for _, r := range c.order {
		if r.relTyp == relType {
			out = append(out, r)
		}
	}
	return out
}

// All returns the relationships in insertion order. The slice is a copy;
// the relationships themselves are shared and immutable.
func (c *Collection) All() []*Relationship {
	out := make([]*Relationship, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of relationships.
func (c *Collection) Len() int { return len(c.order) }

// allocID hands out the next id. nextSuffix tracks the maximum
// allocator-shaped suffix ever seen, so allocation is max+1 and strictly
// monotonic.
func (c *Collection) allocID() string {
	if c.nextSuffix == 0 {
		c.nextSuffix = 1
	}
	id := fmt.Sprintf("rId%d", c.nextSuffix)
	c.nextSuffix++
	return id
}

func (c *Collection) sourceLabel() string {
	if c.source.IsZero() {
		return "package root"
	}
	return c.source.String()
}
