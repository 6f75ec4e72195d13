package opc

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/opcbox/opcbox/pkg/contenttype"
	"github.com/opcbox/opcbox/pkg/errors"
	"github.com/opcbox/opcbox/pkg/partname"
	"github.com/opcbox/opcbox/pkg/rels"
)

// Open opens the container file at path under the given access mode. A
// ReadWrite package commits unsaved state back to path when closed.
//
// The part table, the content-type registry, and the root relationship
// collection are all indexed eagerly here; only the per-part relationship
// documents are parsed lazily, on each part's first Relationships call.
// Eager part discovery means a relationship resolved before some target part
// was seen can never be mistaken for "no relationships".
func Open(path string, mode Mode) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeContainer, err, "open %s", path)
	}
	p, err := fromBytes(data, mode)
	if err != nil {
		return nil, err
	}
	p.originPath = path
	return p, nil
}

// OpenReader reads a whole container from r. The resulting package has no
// backing file: Close releases state without committing anywhere.
func OpenReader(r io.Reader, mode Mode) (*Package, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeContainer, err, "read container")
	}
	return fromBytes(data, mode)
}

// fromBytes parses container bytes into an OPEN package. Any structural
// failure aborts the whole open: no partially populated part table is ever
// observable.
func fromBytes(data []byte, mode Mode) (*Package, error) {
	p := &Package{
		mode:  mode,
		state: stateOpen,
		parts: make(map[string]*Part),
		src:   data,
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p, nil
}

// parse fills the part table, registry, and root relationships from p.src.
func (p *Package) parse() error {
	zr, err := zip.NewReader(bytes.NewReader(p.src), int64(len(p.src)))
	if err != nil {
		return errors.Wrap(errors.ErrCodeContainer, err, "not a valid container archive")
	}

	var manifest *zip.File
	var partEntries []*zip.File
	relsEntries := make(map[string]*zip.File) // source part key -> companion entry
	var rootRels *zip.File

	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		if f.Name == contenttype.ManifestName {
			manifest = f
			continue
		}

		name, err := partname.Parse("/" + f.Name)
		if err != nil {
			return errors.Wrap(errors.ErrCodeContainer, err, "container entry %q", f.Name)
		}
		if name.IsRelsName() {
			source, err := partname.SourceOf(name)
			if err != nil {
				return errors.Wrap(errors.ErrCodeContainer, err, "container entry %q", f.Name)
			}
			if source.IsZero() {
				rootRels = f
			} else {
				relsEntries[source.Key()] = f
			}
			continue
		}
		partEntries = append(partEntries, f)
	}

	if manifest == nil {
		return errors.New(errors.ErrCodeContentTypes,
			"container has no %s entry", contenttype.ManifestName)
	}
	mf, err := manifest.Open()
	if err != nil {
		return errors.Wrap(errors.ErrCodeContentTypes, err, "read content-type manifest")
	}
	p.types, err = contenttype.Parse(mf)
	mf.Close()
	if err != nil {
		return err
	}

	// Index every part before anything resolves relationships.
	for _, f := range partEntries {
		name, _ := partname.Parse("/" + f.Name)
		if _, exists := p.parts[name.Key()]; exists {
			return errors.New(errors.ErrCodeDuplicatePart,
				"container declares part %q twice", name)
		}
		mediaType, err := p.types.TypeOf(name)
		if err != nil {
			return err
		}
		p.parts[name.Key()] = &Part{
			name:        name,
			contentType: mediaType,
			pkg:         p,
			entry:       f,
			relsEntry:   relsEntries[name.Key()],
		}
	}

	// The root collection is mandatory structure: a malformed document fails
	// the open. A missing one simply means no root relationships yet.
	if rootRels != nil {
		rc, err := rootRels.Open()
		if err != nil {
			return errors.Wrap(errors.ErrCodeContainer, err, "read root relationship document")
		}
		p.root, err = rels.Parse(rc, partname.PartName{})
		rc.Close()
		if err != nil {
			return err
		}
	} else {
		p.root = rels.NewCollection(partname.PartName{})
	}

	return nil
}
