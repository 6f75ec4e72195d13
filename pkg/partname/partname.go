// Package partname implements part-name parsing and the URI resolution rules
// used by the package container.
//
// A part name is an absolute, slash-separated path inside a container:
// it begins with "/", has no empty segments, no trailing slash, no fragment,
// and a restricted percent-normalized character set. Names compare
// case-insensitively but preserve the case they were written with.
//
// The package also owns the textual rules for relationship targets: target
// normalization (backslashes, spaces, non-ASCII), relative resolution against
// a source part's folder, and the deterministic naming of a part's companion
// relationship document.
package partname

import (
	"strings"

	"github.com/opcbox/opcbox/pkg/errors"
)

// RootRels is the name of the package root's relationship document.
const RootRels = "/_rels/.rels"

// relsDir and relsExt make up the deterministic companion-document naming
// scheme: /a/b/c.xml -> /a/b/_rels/c.xml.rels.
const (
	relsDir = "_rels"
	relsExt = ".rels"
)

// PartName is a validated, immutable part name. The zero value is not a
// valid name; construct through [Parse].
type PartName struct {
	name string
}

// Parse validates text and returns it as a PartName. It is the single
// validation point: a name that fails any rule is rejected with a
// FORMAT_PART_NAME error, never silently coerced.
func Parse(text string) (PartName, error) {
	if text == "" {
		return PartName{}, errors.New(errors.ErrCodePartName, "part name is empty")
	}
	if !strings.HasPrefix(text, "/") {
		return PartName{}, errors.New(errors.ErrCodePartName, "part name must start with '/': %q", text)
	}
	if text == "/" {
		return PartName{}, errors.New(errors.ErrCodePartName, "part name must have at least one segment")
	}
	if strings.HasSuffix(text, "/") {
		return PartName{}, errors.New(errors.ErrCodePartName, "part name must not end with '/': %q", text)
	}
	if strings.Contains(text, "//") {
		return PartName{}, errors.New(errors.ErrCodePartName, "part name has an empty segment: %q", text)
	}
	if strings.ContainsRune(text, '#') {
		return PartName{}, errors.New(errors.ErrCodePartName, "part name must not carry a fragment: %q", text)
	}
	if err := checkChars(text); err != nil {
		return PartName{}, err
	}
	return PartName{name: text}, nil
}

// MustParse is like [Parse] but panics on error. For constants and tests.
func MustParse(text string) PartName {
	n, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return n
}

// checkChars enforces the restricted character set: pchar as defined for
// URI path segments, with percent signs valid only as %XX escapes.
func checkChars(text string) error {
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '%':
			if i+2 >= len(text) || !isHex(text[i+1]) || !isHex(text[i+2]) {
				return errors.New(errors.ErrCodePartName, "invalid percent escape in part name: %q", text)
			}
			i += 2
		case isPChar(c) || c == '/':
			// ok
		default:
			return errors.New(errors.ErrCodePartName, "invalid character %q in part name: %q", string(c), text)
		}
	}
	return nil
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// isPChar reports whether c is allowed in a path segment: unreserved
// characters, sub-delims, ':' and '@'.
func isPChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '-', '.', '_', '~',
		'!', '$', '&', '\'', '(', ')', '*', '+', ',', ';', '=',
		':', '@', '[', ']':
		return true
	}
	return false
}

// String returns the part name as written.
func (n PartName) String() string { return n.name }

// IsZero reports whether n is the zero value (no name).
func (n PartName) IsZero() bool { return n.name == "" }

// Key returns the case-folded form used as a map key. Part names compare
// case-insensitively.
func (n PartName) Key() string { return strings.ToLower(n.name) }

// Equal reports whether two part names denote the same part.
func (n PartName) Equal(o PartName) bool { return strings.EqualFold(n.name, o.name) }

// Dir returns the containing folder including the trailing slash,
// e.g. "/xl/drawings/" for "/xl/drawings/drawing1.xml" and "/" for "/partA".
func (n PartName) Dir() string {
	i := strings.LastIndexByte(n.name, '/')
	return n.name[:i+1]
}

// Base returns the last segment of the name.
func (n PartName) Base() string {
	i := strings.LastIndexByte(n.name, '/')
	return n.name[i+1:]
}

// Ext returns the extension without the dot, lower-cased, or "" when the
// last segment has none.
func (n PartName) Ext() string {
	base := n.Base()
	i := strings.LastIndexByte(base, '.')
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// RelsName returns the name of this part's companion relationship document.
// The mapping is a pure function of the part name; no registry is involved.
func (n PartName) RelsName() PartName {
	return PartName{name: n.Dir() + relsDir + "/" + n.Base() + relsExt}
}

// IsRelsName reports whether n names a relationship document (the root
// document or any part's companion).
func (n PartName) IsRelsName() bool {
	dir := n.Dir()
	return strings.HasSuffix(strings.TrimSuffix(dir, "/"), "/"+relsDir) &&
		strings.HasSuffix(strings.ToLower(n.name), relsExt)
}

// SourceOf inverts [PartName.RelsName]: given a relationship document name it
// returns the owning part's name, or the zero PartName for the root document.
func SourceOf(rels PartName) (PartName, error) {
	if strings.EqualFold(rels.name, RootRels) {
		return PartName{}, nil
	}
	if !rels.IsRelsName() {
		return PartName{}, errors.New(errors.ErrCodePartName, "not a relationship document name: %q", rels.name)
	}
	dir := strings.TrimSuffix(rels.Dir(), relsDir+"/")
	base := strings.TrimSuffix(rels.Base(), relsExt)
	return Parse(dir + base)
}
