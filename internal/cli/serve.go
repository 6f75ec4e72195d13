package cli

import (
	"github.com/spf13/cobra"

	"github.com/opcbox/opcbox/internal/server"
	"github.com/opcbox/opcbox/pkg/opc"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr string // listen address
}

// newServeCmd creates the serve command for exposing a package read-only
// over HTTP. The server runs until interrupted.
func newServeCmd() *cobra.Command {
	opts := serveOpts{addr: ":8080"}

	cmd := &cobra.Command{
		Use:   "serve [package]",
		Short: "Expose a package read-only over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", opts.addr, "listen address")

	return cmd
}

func runServe(cmd *cobra.Command, path string, opts *serveOpts) error {
	logger := loggerFromContext(cmd.Context())

	p, err := opc.Open(path, opc.Read)
	if err != nil {
		return err
	}
	defer p.Close()

	printInfo("Serving %s on %s", path, opts.addr)
	printDetail("GET /parts, /parts/{name}, /rels, /rels/{name}")

	s := &server.Server{Addr: opts.addr, Package: p, Logger: logger}
	return s.Run(cmd.Context())
}
