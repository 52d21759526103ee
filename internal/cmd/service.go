package cmd

import (
	"github.com/spf13/cobra"

	"github.com/iczelia/k16brightd/internal/service"
)

func newServiceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the systemd system service",
	}

	var opts service.Options
	install := &cobra.Command{
		Use:   "install",
		Short: "Install the D-Bus policy and the systemd unit, and enable the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return service.Install(cmd.Context(), opts)
		},
	}
	install.Flags().BoolVar(&opts.Start, "start", false, "Start the service immediately after installing")
	install.Flags().StringVar(&opts.ConfigPath, "config", "", "Config file path to embed in the unit file's ExecStart")
	install.Flags().StringVar(&opts.Group, "group", "", "Only allow members of this group to call the service")

	uninstall := &cobra.Command{
		Use:   "uninstall",
		Short: "Stop, disable and remove the service and its D-Bus policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return service.Uninstall(cmd.Context())
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return service.Status(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(install, uninstall, status)
	return cmd
}
