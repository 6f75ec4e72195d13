package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opcbox/opcbox/pkg/opc"
	"github.com/opcbox/opcbox/pkg/relgraph"
)

const (
	formatDOT = "dot"
	formatSVG = "svg"
	formatPNG = "png"
)

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	output   string  // output file; empty derives from the package path
	format   string  // output format: dot, svg, png
	detailed bool    // include content types in node labels
	scale    float64 // raster scale for PNG output
}

// newGraphCmd creates the graph command for rendering a package's
// relationship graph.
func newGraphCmd() *cobra.Command {
	opts := graphOpts{format: formatSVG, scale: 2.0}

	cmd := &cobra.Command{
		Use:   "graph [package]",
		Short: "Render the relationship graph as DOT, SVG, or PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateGraphFormat(opts.format); err != nil {
				return err
			}
			return runGraph(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: package path + format extension)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: svg (default), dot, png")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include content types in node labels")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "raster scale for png output")

	return cmd
}

// validateGraphFormat checks that the requested format is supported.
func validateGraphFormat(format string) error {
	switch format {
	case formatDOT, formatSVG, formatPNG:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (must be 'dot', 'svg', or 'png')", format)
	}
}

func runGraph(cmd *cobra.Command, path string, opts *graphOpts) error {
	logger := loggerFromContext(cmd.Context())
	prog := newProgress(logger)

	p, err := opc.Open(path, opc.Read)
	if err != nil {
		return err
	}
	defer p.Close()

	dot, err := relgraph.ToDOT(p, relgraph.Options{Detailed: opts.detailed})
	if err != nil {
		return err
	}

	var data []byte
	switch opts.format {
	case formatDOT:
		data = []byte(dot)
	case formatSVG:
		data, err = relgraph.RenderSVG(dot)
	case formatPNG:
		data, err = relgraph.RenderPNG(dot, opts.scale)
	}
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = strings.TrimSuffix(path, ".opc") + "." + opts.format
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return err
	}

	prog.done(fmt.Sprintf("Rendered %d parts", len(p.Parts())))
	printSuccess("Wrote relationship graph")
	printFile(output)
	return nil
}
