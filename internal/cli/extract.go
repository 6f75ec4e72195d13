package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opcbox/opcbox/pkg/opc"
	"github.com/opcbox/opcbox/pkg/partname"
)

// extractOpts holds the command-line flags for the extract command.
type extractOpts struct {
	output string // output file; "-" or empty writes to stdout
}

// newExtractCmd creates the extract command for writing a part's content
// stream out of the package.
func newExtractCmd() *cobra.Command {
	var opts extractOpts

	cmd := &cobra.Command{
		Use:   "extract [package] [part]",
		Short: "Write a part's content stream to a file or stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args[0], args[1], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")

	return cmd
}

func runExtract(cmd *cobra.Command, path, part string, opts *extractOpts) error {
	name, err := partname.Parse(part)
	if err != nil {
		return err
	}

	p, err := opc.Open(path, opc.Read)
	if err != nil {
		return err
	}
	defer p.Close()

	pt := p.Part(name)
	if pt == nil {
		return fmt.Errorf("no part %q in %s", name, path)
	}
	content, err := pt.Content()
	if err != nil {
		return err
	}

	if opts.output == "" || opts.output == "-" {
		_, err := os.Stdout.Write(content)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(opts.output), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(opts.output, content, 0644); err != nil {
		return err
	}
	printSuccess("Extracted %s (%s)", name, pt.ContentType())
	printFile(opts.output)
	return nil
}
