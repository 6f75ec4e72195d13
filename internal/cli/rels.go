package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opcbox/opcbox/pkg/opc"
	"github.com/opcbox/opcbox/pkg/partname"
	"github.com/opcbox/opcbox/pkg/rels"
)

// relsOpts holds the command-line flags for the rels command.
type relsOpts struct {
	relType string // only relationships of exactly this type
	decode  bool   // show targets with percent escapes decoded
}

// newRelsCmd creates the rels command for showing a relationship collection.
// Without a part argument it shows the package root collection.
func newRelsCmd() *cobra.Command {
	var opts relsOpts

	cmd := &cobra.Command{
		Use:   "rels [package] [part]",
		Short: "Show a relationship collection (package root or a part)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			part := ""
			if len(args) == 2 {
				part = args[1]
			}
			return runRels(cmd, args[0], part, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.relType, "type", "t", "", "only relationships of exactly this type")
	cmd.Flags().BoolVar(&opts.decode, "decode", false, "decode percent escapes in targets for display")

	return cmd
}

func runRels(cmd *cobra.Command, path, part string, opts *relsOpts) error {
	p, err := opc.Open(path, opc.Read)
	if err != nil {
		return err
	}
	defer p.Close()

	var list []*rels.Relationship
	source := "package root"
	if part == "" {
		list = p.Relationships().All()
	} else {
		name, err := partname.Parse(part)
		if err != nil {
			return err
		}
		pt := p.Part(name)
		if pt == nil {
			return fmt.Errorf("no part %q in %s", name, path)
		}
		c, err := pt.Relationships()
		if err != nil {
			return err
		}
		list = c.All()
		source = name.String()
	}

	if opts.relType != "" {
		filtered := list[:0]
		for _, r := range list {
			if r.Type() == opts.relType {
				filtered = append(filtered, r)
			}
		}
		list = filtered
	}

	fmt.Println(StyleTitle.Render(source))
	for _, r := range list {
		target := r.Target()
		if opts.decode {
			target = partname.DecodeTarget(target)
		}
		tStyle := StyleValue
		if r.Mode() == rels.ModeExternal {
			tStyle = StyleLink
		}
		fmt.Println("  " + styleID.Render(r.ID()) + " " +
			StyleDim.Render(iconArrow) + " " + tStyle.Render(target) +
			"  " + StyleDim.Render(typeSuffix(r.Type())))
	}
	if len(list) == 0 {
		printDetail("no relationships")
	}
	return nil
}

// typeSuffix shortens a relationship type URI to its last path segment.
func typeSuffix(relType string) string {
	for i := len(relType) - 1; i >= 0; i-- {
		if relType[i] == '/' {
			return relType[i+1:]
		}
	}
	return relType
}
