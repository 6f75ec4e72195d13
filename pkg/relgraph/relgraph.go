// Package relgraph renders the relationship graph of a package as a
// Graphviz node-link diagram.
//
// The package root and every part become nodes; every relationship becomes a
// directed edge labeled with the last path segment of its type URI. External
// targets appear as dashed nodes since they live outside the container.
package relgraph

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/opcbox/opcbox/pkg/opc"
	"github.com/opcbox/opcbox/pkg/partname"
	"github.com/opcbox/opcbox/pkg/rels"
)

// Options configures relationship graph rendering.
type Options struct {
	// Detailed includes each part's content type in its node label.
	Detailed bool
}

// rootNode is the display id of the package root.
const rootNode = "/"

// ToDOT converts a package's relationship graph to Graphviz DOT format.
// The resulting string can be rendered with [RenderSVG] or [RenderPNG].
func ToDOT(p *opc.Package, opts Options) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("digraph package {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "  %q [shape=circle, fillcolor=lightgrey];\n", rootNode)
	for _, part := range p.Parts() {
		fmt.Fprintf(&buf, "  %q [label=%q];\n", part.Name().String(), nodeLabel(part, opts))
	}
	buf.WriteString("\n")

	external := make(map[string]bool)
	if err := writeEdges(&buf, p, rootNode, p.Relationships(), external); err != nil {
		return "", err
	}
	for _, part := range p.Parts() {
		c, err := part.Relationships()
		if err != nil {
			return "", err
		}
		if err := writeEdges(&buf, p, part.Name().String(), c, external); err != nil {
			return "", err
		}
	}

	if len(external) > 0 {
		buf.WriteString("\n")
		targets := make([]string, 0, len(external))
		for t := range external {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		for _, t := range targets {
			fmt.Fprintf(&buf, "  %q [style=\"rounded,filled,dashed\", fillcolor=lightyellow];\n", t)
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func writeEdges(buf *bytes.Buffer, p *opc.Package, from string, c *rels.Collection, external map[string]bool) error {
	for _, r := range c.All() {
		to := r.Target()
		if r.Mode() == rels.ModeInternal {
			// A zero source resolves against the container root.
			if resolved, err := partname.Resolve(r.Source(), r.Target()); err == nil {
				to = resolved.String()
			}
		} else {
			external[to] = true
		}
		fmt.Fprintf(buf, "  %q -> %q [label=%q, fontsize=9];\n", from, to, typeLabel(r.Type()))
	}
	return nil
}

func nodeLabel(part *opc.Part, opts Options) string {
	if !opts.Detailed {
		return part.Name().String()
	}
	return part.Name().String() + "\n" + part.ContentType()
}

// typeLabel shortens a relationship type URI to its last path segment.
func typeLabel(relType string) string {
	t := strings.TrimSuffix(relType, "/")
	if i := strings.LastIndexByte(t, '/'); i >= 0 {
		return t[i+1:]
	}
	return t
}
