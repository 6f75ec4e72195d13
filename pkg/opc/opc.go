// Package opc implements the package container: the archive of parts,
// the content-type registry, and the root relationship collection, with
// transactional open/save/revert semantics.
//
// A Package is created once per logical document and owns every [Part] and
// the registry for its entire lifetime. Lifecycle:
//
//	New / Create     -> CREATED (fresh, optionally bound to a destination)
//	Open / OpenReader-> OPEN, under [Read] or [ReadWrite] access
//	Close / Revert   -> Close ends in CLOSED (terminal); Revert restores the
//	                    last-read view and keeps the package usable
//
// Under [Read] access every mutating operation fails with a STATE_READ_ONLY
// error; after Close every operation fails with STATE_CLOSED. Lookup misses
// are nil/empty results, never errors.
//
// The engine assumes single-threaded, caller-synchronized use: no internal
// locking guards the part table or the relationship collections.
package opc

import (
	"github.com/opcbox/opcbox/pkg/contenttype"
	"github.com/opcbox/opcbox/pkg/errors"
	"github.com/opcbox/opcbox/pkg/partname"
	"github.com/opcbox/opcbox/pkg/rels"
)

// Mode is the access mode a package was opened with.
type Mode int

const (
	// Read allows lookups only; mutations fail with a state error.
	Read Mode = iota
	// ReadWrite allows the full mutation surface.
	ReadWrite
)

// String returns the mode's name.
func (m Mode) String() string {
	if m == ReadWrite {
		return "READ_WRITE"
	}
	return "READ"
}

type state int

const (
	stateCreated state = iota
	stateOpen
	stateClosed
)

// Package is the multi-entry container. Parts are keyed by their
// case-folded names; the root relationship collection and the content-type
// registry are owned exclusively by the package.
type Package struct {
	mode  Mode
	state state
	dirty bool

	parts map[string]*Part
	types *contenttype.Registry
	root  *rels.Collection

	// src holds the container bytes last read from the backing source;
	// Revert reparses them. Nil for freshly created packages.
	src []byte
	// originPath is the backing file a ReadWrite close commits to.
	originPath string
}

// New returns a fresh in-memory package in the CREATED state, seeded with
// the mandatory content-type defaults and an empty root relationship set.
// Persist it with [Package.Save] or [Package.SaveFile].
func New() *Package {
	return &Package{
		mode:  ReadWrite,
		state: stateCreated,
		parts: make(map[string]*Part),
		types: contenttype.New(),
		root:  rels.NewCollection(partname.PartName{}),
	}
}

// Create returns a CREATED package bound to path: closing it commits the
// package there.
func Create(path string) *Package {
	p := New()
	p.originPath = path
	p.dirty = true
	return p
}

// Mode returns the access mode.
func (p *Package) Mode() Mode { return p.mode }

// ensureLive fails when the package has been closed.
func (p *Package) ensureLive() error {
	if p.state == stateClosed {
		return errors.New(errors.ErrCodeClosed, "package is closed")
	}
	return nil
}

// ensureWritable fails when the package has been closed or was opened
// read-only. Freshly created packages are always writable.
func (p *Package) ensureWritable() error {
	if err := p.ensureLive(); err != nil {
		return err
	}
	if p.state == stateOpen && p.mode == Read {
		return errors.New(errors.ErrCodeReadOnly, "package was opened with READ access")
	}
	return nil
}
