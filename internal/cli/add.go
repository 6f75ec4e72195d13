package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opcbox/opcbox/pkg/opc"
	"github.com/opcbox/opcbox/pkg/partname"
)

// addOpts holds the command-line flags for the add command.
type addOpts struct {
	name      string // part name; defaults to "/" + file basename
	mediaType string // content type; inferred from the extension when empty
	relType   string // when set, also add a root relationship of this type
}

// newAddCmd creates the add command for inserting a file into a package as a
// new part. When --type is omitted the media type is inferred from the file
// extension, consulting the user configuration
// (~/.config/opcbox/config.toml, [types] table) before the built-in table.
func newAddCmd() *cobra.Command {
	var opts addOpts

	cmd := &cobra.Command{
		Use:   "add [package] [file]",
		Short: "Insert a file into a package as a new part",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, args[0], args[1], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "part name (default: '/' + file basename)")
	cmd.Flags().StringVarP(&opts.mediaType, "type", "t", "", "content type (default: inferred from the extension)")
	cmd.Flags().StringVarP(&opts.relType, "rel", "r", "", "also add a package-root relationship of this type")

	return cmd
}

func runAdd(cmd *cobra.Command, path, file string, opts *addOpts) error {
	logger := loggerFromContext(cmd.Context())

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	rawName := opts.name
	if rawName == "" {
		rawName = "/" + filepath.Base(file)
	}
	name, err := partname.Parse(rawName)
	if err != nil {
		return err
	}

	mediaType := opts.mediaType
	if mediaType == "" {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("read configuration: %w", err)
		}
		mediaType = cfg.inferType(file)
		if mediaType == "" {
			return fmt.Errorf("cannot infer a content type for %s, pass --type", file)
		}
		logger.Debug("inferred content type", "part", name, "type", mediaType)
	}

	p, err := opc.Open(path, opc.ReadWrite)
	if err != nil {
		return err
	}
	defer p.Close()

	part, err := p.CreatePart(name, mediaType)
	if err != nil {
		return err
	}
	if err := part.SetContent(data); err != nil {
		return err
	}

	if opts.relType != "" {
		rel, err := p.AddRelationship(name, opts.relType)
		if err != nil {
			return err
		}
		printDetail("root relationship %s %s %s", rel.ID(), iconArrow, name)
	}

	if err := p.SaveFile(path); err != nil {
		return err
	}
	printSuccess("Added %s (%s, %d bytes)", name, mediaType, len(data))
	return nil
}
