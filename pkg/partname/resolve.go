package partname

import (
	"strings"

	"github.com/opcbox/opcbox/pkg/errors"
)

// Resolve resolves an INTERNAL relationship target against the source part's
// containing folder and returns the absolute name of the part it denotes.
// Any fragment is ignored for resolution: fragments address locations inside
// a part's content, not container paths. Climbing segments are collapsed
// against the source folder but never past the container root.
func Resolve(source PartName, target string) (PartName, error) {
	path := target
	if i := strings.IndexByte(path, '#'); i >= 0 {
		path = path[:i]
	}
	path = strings.ReplaceAll(path, "\\", "/")
	if path == "" {
		// A pure-fragment target points back into the source itself.
		return source, nil
	}

	if !strings.HasPrefix(path, "/") {
		path = source.Dir() + path
	}

	var out []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			// skip
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return PartName{}, errors.New(errors.ErrCodePartName, "target %q resolves to the container root", target)
	}
	return Parse("/" + strings.Join(out, "/"))
}

// Relativize expresses an internal target relative to the source part's
// containing folder. A fragment component of the target is carried through
// unchanged. Targets that are already relative (including multi-level "../"
// climbs) or that carry a scheme are returned verbatim: what their segments
// literally encode is never collapsed or recomputed.
func Relativize(source PartName, target string) string {
	path, frag := splitFragment(target)
	if path == "" || !strings.HasPrefix(path, "/") {
		return target
	}

	srcSegs := segments(source.Dir())
	tgtSegs := segments(path)
	if len(tgtSegs) == 0 {
		return target
	}

	// Drop the common folder prefix, then climb out of what remains of the
	// source folder.
	common := 0
	for common < len(srcSegs) && common < len(tgtSegs)-1 && strings.EqualFold(srcSegs[common], tgtSegs[common]) {
		common++
	}

	var b strings.Builder
	for range srcSegs[common:] {
		b.WriteString("../")
	}
	b.WriteString(strings.Join(tgtSegs[common:], "/"))
	if frag != "" {
		b.WriteByte('#')
		b.WriteString(frag)
	}
	return b.String()
}

func splitFragment(s string) (path, frag string) {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func segments(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// NormalizeTarget applies the normalization pass every target receives when
// written: backslashes become forward slashes, raw spaces and non-ASCII code
// points are percent-encoded. Existing percent escapes and the '#' and '?'
// delimiters are left untouched; external targets get no path resolution.
func NormalizeTarget(s string) string {
	s = strings.ReplaceAll(s, "\\", "/")

	var b strings.Builder
	b.Grow(len(s))
	for _, c := range []byte(s) {
		if c == ' ' || c >= 0x80 {
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xF])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

const hexDigits = "0123456789ABCDEF"

// DecodeTarget reverses percent escapes in a target for display. Malformed
// escapes are kept as written. A trailing non-breaking space encoded as
// %C2%A0 decodes back to the exact character.
func DecodeTarget(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
