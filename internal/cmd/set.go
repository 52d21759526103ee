package cmd

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iczelia/k16brightd/internal/cli"
	dbustypes "github.com/iczelia/k16brightd/internal/dbus"
	"github.com/iczelia/k16brightd/internal/notification"
	"github.com/iczelia/k16brightd/internal/sysfs"
	"github.com/iczelia/k16brightd/internal/validate"
)

type clientOptions struct {
	busAddress string
	sysfsRoot  string
	timeout    time.Duration
	asJSON     bool
	notify     bool
}

func addClientFlags(cmd *cobra.Command, opts *clientOptions) {
	fs := cmd.Flags()
	fs.StringVar(&opts.busAddress, "bus-address", "", "D-Bus address to connect to (default: system bus)")
	fs.StringVar(&opts.sysfsRoot, "sysfs-root", "", "Where sysfs is mounted, for lookups done by the client (default: /sys)")
	fs.DurationVar(&opts.timeout, "timeout", cli.DefaultTimeout, "How long to wait for the daemon's reply")
	fs.BoolVar(&opts.asJSON, "json", false, "Output in JSON format")
	fs.BoolVar(&opts.notify, "notify", false, "Show a desktop notification on the session bus after the change")
}

func (o *clientOptions) dial() (*cli.Client, error) {
	c, err := dialFunc(o.busAddress)
	if err != nil {
		return nil, err
	}
	c.SetTimeout(o.timeout)
	return c, nil
}

// dialFunc is replaced in tests.
var dialFunc = cli.Dial

func newSetGovernorCommand() *cobra.Command {
	opts := &clientOptions{}
	cmd := &cobra.Command{
		Use:   "set-governor CPU GOVERNOR",
		Short: "Set the scaling governor of a CPU, or of every CPU with \"all\"",
		Example: `  k16brightd set-governor 0 performance
  k16brightd set-governor all powersave`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cpus, err := parseCPUs(args[0], sysfs.New(opts.sysfsRoot))
			if err != nil {
				return err
			}
			c, err := opts.dial()
			if err != nil {
				return err
			}
			defer c.Close()

			f := cli.NewFormatter(cmd.OutOrStdout(), opts.asJSON)
			for _, cpu := range cpus {
				if err := c.SetGovernor(cmd.Context(), cpu, args[1]); err != nil {
					return err
				}
				f.FormatAction(dbustypes.MethodSetGovernor, fmt.Sprintf("cpu%d", cpu), args[1]) //nolint:errcheck
			}
			if opts.notify {
				sendNotice(notification.GovernorNotice(cpus, args[1]))
			}
			return nil
		},
	}
	addClientFlags(cmd, opts)
	return cmd
}

// parseCPUs turns a CPU argument into indices. "all" expands to every CPU
// that has cpufreq. Range checks are left to the daemon.
func parseCPUs(arg string, fs *sysfs.FS) ([]int32, error) {
	if arg != "all" {
		n, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid CPU %q: want an integer or \"all\"", arg)
		}
		return []int32{int32(n)}, nil
	}
	list, err := fs.CPUs()
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("no CPUs with cpufreq under %s", fs.Root())
	}
	cpus := make([]int32, 0, len(list))
	for _, c := range list {
		cpus = append(cpus, int32(c.Index))
	}
	return cpus, nil
}

func newSetBrightnessCommand() *cobra.Command {
	opts := &clientOptions{}
	cmd := &cobra.Command{
		Use:   "set-brightness DEVICE LEVEL",
		Short: "Set the level of a backlight device, as a raw value or a percentage",
		Example: `  k16brightd set-brightness intel_backlight 150
  k16brightd set-brightness intel_backlight 40%
  k16brightd set-brightness --notify intel_backlight 5%+`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(args[1], args[0], sysfs.New(opts.sysfsRoot))
			if err != nil {
				return err
			}
			c, err := opts.dial()
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.SetBrightness(cmd.Context(), args[0], level); err != nil {
				return err
			}
			if opts.notify {
				fs := sysfs.New(opts.sysfsRoot)
				maxLevel, _ := fs.ReadInt(sysfs.MaxBrightnessPath(fs.BacklightDir(args[0])))
				sendNotice(notification.BrightnessNotice(args[0], int64(level), maxLevel))
			}
			return cli.NewFormatter(cmd.OutOrStdout(), opts.asJSON).FormatAction(dbustypes.MethodSetBrightness, args[0], level)
		},
	}
	addClientFlags(cmd, opts)
	return cmd
}

// parseLevel accepts a raw level or a percentage of the device's
// max_brightness. A trailing "+" or "-" makes either one relative to the
// current brightness, clamped to 0..max. Percentages need a readable,
// positive maximum.
func parseLevel(arg, device string, fs *sysfs.FS) (int32, error) {
	body, sign := arg, int64(0)
	if b, ok := strings.CutSuffix(arg, "+"); ok {
		body, sign = b, 1
	} else if b, ok := strings.CutSuffix(arg, "-"); ok {
		body, sign = b, -1
	}
	pct, isPct := strings.CutSuffix(body, "%")
	if !isPct && sign == 0 {
		n, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid level %q", arg)
		}
		return int32(n), nil
	}

	// The name becomes part of a path read here, before the daemon sees it.
	if err := validate.BacklightName(device); err != nil {
		return 0, err
	}
	dir := fs.BacklightDir(device)
	maxLevel, err := fs.ReadInt(sysfs.MaxBrightnessPath(dir))
	if err != nil {
		maxLevel = 0
	}

	var amount int64
	if isPct {
		p, err := strconv.ParseFloat(pct, 64)
		if err != nil || p < 0 || p > 100 {
			return 0, fmt.Errorf("invalid percentage %q", arg)
		}
		if maxLevel <= 0 {
			return 0, fmt.Errorf("%s: max_brightness unknown, give a raw level", device)
		}
		amount = int64(float64(maxLevel)*p/100 + 0.5)
	} else {
		n, err := strconv.ParseInt(body, 10, 32)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid level %q", arg)
		}
		amount = n
	}
	if sign == 0 {
		return int32(min(amount, math.MaxInt32)), nil
	}

	cur, err := fs.ReadInt(sysfs.BrightnessPath(dir))
	if err != nil {
		return 0, fmt.Errorf("%s: read current brightness: %w", device, err)
	}
	next := max(cur+sign*amount, 0)
	if maxLevel > 0 {
		next = min(next, maxLevel)
	}
	return int32(min(next, math.MaxInt32)), nil
}

type closingNotifier interface {
	notification.Notifier
	Close() error
}

// newNotifier is replaced in tests.
var newNotifier = func() (closingNotifier, error) {
	return notification.NewDBusNotifier()
}

// sendNotice shows an on-screen notice. The change already happened, so
// failures only warn.
func sendNotice(notice notification.Notice) {
	n, err := newNotifier()
	if err != nil {
		slog.Warn("desktop notification unavailable", "error", err)
		return
	}
	defer n.Close()
	if _, err := n.Notify(notice); err != nil {
		slog.Warn("failed to send desktop notification", "error", err)
	}
}
