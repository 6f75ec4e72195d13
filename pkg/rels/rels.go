// Package rels implements relationships: the typed, identified, directed
// edges from a part (or the package root) to a target URI, and the ordered
// collection owning them.
//
// A collection belongs to exactly one source and is never shared or merged.
// Insertion order is the persisted order; two derived indices (by id, unique;
// by type, order-preserving) serve lookups. Identifier allocation is
// monotonic: an id freed by Remove is never handed out again.
package rels

import (
	"regexp"
	"strconv"

	"github.com/opcbox/opcbox/pkg/partname"
)

// TargetMode says how a relationship's target is interpreted.
type TargetMode int

const (
	// ModeInternal targets denote another part reachable inside the
	// container, possibly written relative to the source part's folder.
	ModeInternal TargetMode = iota
	// ModeExternal targets are opaque URIs, never resolved against the
	// container.
	ModeExternal
)

// String returns the wire spelling of the mode.
func (m TargetMode) String() string {
	if m == ModeExternal {
		return "External"
	}
	return "Internal"
}

// Relationship is one edge of the package graph. It is immutable once
// created; only its owning [Collection] may remove it.
type Relationship struct {
	id     string
	relTyp string
	target string
	mode   TargetMode
	source partname.PartName // zero for the package root
}

// ID returns the identifier, unique within the owning collection.
func (r *Relationship) ID() string { return r.id }

// Type returns the relationship's type URI.
func (r *Relationship) Type() string { return r.relTyp }

// Target returns the target string exactly as stored. For internal targets
// use [partname.Resolve] with [Relationship.Source] to locate the part.
func (r *Relationship) Target() string { return r.target }

// Mode returns the target mode.
func (r *Relationship) Mode() TargetMode { return r.mode }

// Source returns the owning part's name; the zero PartName means the edge
// belongs to the package root.
func (r *Relationship) Source() partname.PartName { return r.source }

// idPattern is the allocator's own numeric-suffix shape. Ids outside it
// (explicitly supplied) are legal but never influence allocation.
var idPattern = regexp.MustCompile(`^rId([0-9]+)$`)

// idSuffix returns the numeric suffix of an allocator-shaped id, or -1.
func idSuffix(id string) int {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}
