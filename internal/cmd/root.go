// Package cmd implements the k16brightd command tree.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version is reported by the version subcommand and logged at startup.
var Version = "dev"

// NewRootCommand builds the command tree. Running it without a
// subcommand starts the daemon, the same as "serve".
func NewRootCommand() *cobra.Command {
	opts := &serveOptions{}

	root := &cobra.Command{
		Use:   "k16brightd",
		Short: "Privileged D-Bus helper for CPU governors and backlight brightness",
		Long: `k16brightd owns net.iczelia.K16BrightD on the system bus and performs
two privileged writes for unprivileged callers: SetGovernor and SetBrightness.

Without a subcommand it runs the daemon.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	addServeFlags(root, opts)

	root.AddCommand(newServeCommand())
	root.AddCommand(newSetGovernorCommand())
	root.AddCommand(newSetBrightnessCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newServiceCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

// Execute runs the command tree with os.Args and exits non-zero on error.
func Execute() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}
