package cmd

import (
	"github.com/spf13/cobra"

	"github.com/iczelia/k16brightd/internal/cli"
	"github.com/iczelia/k16brightd/internal/sysfs"
)

func newStatusCommand() *cobra.Command {
	var sysfsRoot string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show CPU governors and backlight levels",
		Long:  "Reads governors and backlight levels from sysfs. Needs no privileges and does not contact the daemon.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := sysfs.New(sysfsRoot)
			cpus, err := fs.CPUs()
			if err != nil {
				return err
			}
			backlights, err := fs.Backlights()
			if err != nil {
				return err
			}
			return cli.NewFormatter(cmd.OutOrStdout(), asJSON).FormatStatus(cli.Status{
				CPUs:       cpus,
				Backlights: backlights,
			})
		},
	}
	cmd.Flags().StringVar(&sysfsRoot, "sysfs-root", "", "Where sysfs is mounted (default: /sys)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}
