package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opcbox/opcbox/pkg/opc"
)

// listOpts holds the command-line flags for the list command.
type listOpts struct {
	glob string // part name pattern, empty for all parts
	long bool   // include content size and relationship count
}

// newListCmd creates the list command for showing a package's parts.
func newListCmd() *cobra.Command {
	var opts listOpts

	cmd := &cobra.Command{
		Use:   "list [package]",
		Short: "List the parts of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.glob, "glob", "g", "", "only parts matching this pattern (e.g. '/xl/**/*.xml')")
	cmd.Flags().BoolVarP(&opts.long, "long", "l", false, "include content size and relationship count")

	return cmd
}

func runList(cmd *cobra.Command, path string, opts *listOpts) error {
	logger := loggerFromContext(cmd.Context())
	prog := newProgress(logger)

	p, err := opc.Open(path, opc.Read)
	if err != nil {
		return err
	}
	defer p.Close()

	parts := p.Parts()
	if opts.glob != "" {
		parts = p.PartsByName(opts.glob)
	}
	prog.done(fmt.Sprintf("Indexed %d parts", len(parts)))

	for _, part := range parts {
		line := StyleValue.Render(part.Name().String()) + "  " + StyleDim.Render(part.ContentType())
		if opts.long {
			content, err := part.Content()
			if err != nil {
				return err
			}
			n, err := part.Relationships()
			if err != nil {
				return err
			}
			line += StyleDim.Render(fmt.Sprintf("  %d bytes, %d rels", len(content), n.Len()))
		}
		fmt.Println(line)
	}
	return nil
}
