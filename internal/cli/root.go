package cli

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version string // semantic version (e.g., "v1.2.3")
	commit  string // git commit SHA
	date    string // build timestamp
)

// SetVersion sets the version information displayed by --version.
// This is typically called by the main package during initialization with
// values injected via ldflags at build time.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the opcbox CLI and returns an error if any command fails.
//
// The function sets up the root command with all subcommands (list, rels,
// extract, add, graph, serve), configures logging based on the --verbose
// flag, and executes the command tree under ctx.
//
// Logging:
//   - Default: info level (logs to stderr)
//   - With --verbose (-v): debug level
//
// The logger is attached to the context and accessible to all commands via
// loggerFromContext.
func Execute(ctx context.Context) error {
	var verbose bool

	root := &cobra.Command{
		Use:          "opcbox",
		Short:        "opcbox inspects and edits document packages",
		Long:         `opcbox is a CLI tool for working with document packages: listing parts, walking relationship collections, extracting content streams, adding parts, and rendering the relationship graph.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("opcbox %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newListCmd())
	root.AddCommand(newRelsCmd())
	root.AddCommand(newExtractCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newGraphCmd())
	root.AddCommand(newServeCmd())

	return root.ExecuteContext(ctx)
}
