package opc

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/opcbox/opcbox/pkg/contenttype"
	"github.com/opcbox/opcbox/pkg/errors"
	"github.com/opcbox/opcbox/pkg/partname"
	"github.com/opcbox/opcbox/pkg/rels"
)

// Save serializes the package into w: the content-type manifest, the root
// relationship document, every part's bytes, and every part's companion
// relationship document (emitted only when that part has at least one
// relationship).
//
// Writing is staged into a buffer and only copied into w on full success, so
// a failed save never leaves a partial container behind. Save neither closes
// nor invalidates the package, and the destination may be distinct from the
// original backing store; the ability to Revert the source is unaffected.
// A package opened with Read access cannot be saved anywhere.
func (p *Package) Save(w io.Writer) error {
	if err := p.ensureWritable(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := p.serialize(&buf); err != nil {
		return err
	}
	if _, err := buf.WriteTo(w); err != nil {
		return errors.Wrap(errors.ErrCodeContainer, err, "write container")
	}
	p.dirty = false
	return nil
}

// SaveFile saves the package to path through a temporary sibling file that
// is atomically renamed into place on success.
func (p *Package) SaveFile(path string) error {
	if err := p.ensureWritable(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := p.serialize(&buf); err != nil {
		return err
	}

	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(errors.ErrCodeContainer, err, "stage container to %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeContainer, err, "commit container to %s", path)
	}
	p.dirty = false
	return nil
}

// serialize writes the complete container into buf. Any failure aborts with
// buf considered garbage; callers only publish buf on a nil error.
func (p *Package) serialize(buf *bytes.Buffer) error {
	zw := zip.NewWriter(buf)

	if err := writeEntry(zw, contenttype.ManifestName, p.types.Encode); err != nil {
		return err
	}
	// The root document is always emitted, even when empty: it is mandatory
	// container structure, unlike part-level companions.
	if err := writeEntry(zw, entryName(partname.MustParse(partname.RootRels)), p.root.Encode); err != nil {
		return err
	}

	for _, part := range p.Parts() {
		data, err := part.Content()
		if err != nil {
			return err
		}
		w, err := zw.Create(entryName(part.name))
		if err != nil {
			return errors.Wrap(errors.ErrCodeContainer, err, "create entry %q", part.name)
		}
		if _, err := w.Write(data); err != nil {
			return errors.Wrap(errors.ErrCodeContainer, err, "write entry %q", part.name)
		}

		c, err := part.Relationships()
		if err != nil {
			return err
		}
		if c.Len() == 0 {
			continue
		}
		if err := writeEntry(zw, entryName(part.name.RelsName()), c.Encode); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeContainer, err, "finish container")
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, write func(io.Writer) error) error {
	w, err := zw.Create(name)
	if err != nil {
		return errors.Wrap(errors.ErrCodeContainer, err, "create entry %q", name)
	}
	return write(w)
}

// entryName maps a part name to its archive entry name (no leading slash).
func entryName(name partname.PartName) string {
	return strings.TrimPrefix(name.String(), "/")
}

// Revert discards every in-memory mutation and restores the package's view
// to exactly what was last read from its original backing store. It never
// writes to that store, and the package stays usable. Reverting a freshly
// created package resets it to empty.
func (p *Package) Revert() error {
	if err := p.ensureLive(); err != nil {
		return err
	}

	if p.src == nil {
		p.parts = make(map[string]*Part)
		p.types = contenttype.New()
		p.root = rels.NewCollection(partname.PartName{})
		return nil
	}
	p.parts = make(map[string]*Part)
	if err := p.parse(); err != nil {
		return err
	}
	p.dirty = false
	return nil
}

// Close ends the package's lifetime. A dirty ReadWrite (or created) package
// bound to a backing file commits there first; in all cases the retained
// source and part table are released and the CLOSED state is terminal.
func (p *Package) Close() error {
	if err := p.ensureLive(); err != nil {
		return err
	}

	var commitErr error
	if p.dirty && p.mode == ReadWrite && p.originPath != "" {
		commitErr = p.SaveFile(p.originPath)
	}

	p.state = stateClosed
	p.parts = make(map[string]*Part)
	p.types = contenttype.New()
	p.root = rels.NewCollection(partname.PartName{})
	p.src = nil
	return commitErr
}
