// Command kernelsim is the host-side test harness spec §1 implicitly
// calls for when it carves "the user-space CLI and test programs" out of
// the kernel-proper's scope: something still has to boot the simulated
// kernel, drive the scenarios of spec §8, and report what happened. It is
// not part of the kernel itself — every subcommand talks to the kernel
// packages purely through their exported contracts (dispatch.Kernel,
// fs.Format/Mount, sched.Scheduler).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kernelsim",
		Short: "Boots and drives the simulated teaching kernel",
		Long: `kernelsim boots a host-simulated instance of the kernel core (frame
allocator, scheduler, synchronization layer, log-backed filesystem) and
runs bring-up scenarios against it. It stands in for the real boot
assembly, trap vectors, and shell, none of which are in scope for the
kernel packages themselves.`,
	}

	root.AddCommand(newBootCmd())
	root.AddCommand(newFsckCmd())
	root.AddCommand(newBenchCmd())
	return root
}

// bindCommonFlags registers the BootConfig flag set onto cmd and binds it
// into v, matching the pflag-on-cobra plus viper binding pattern of the
// gcsfuse-derived dependency surface (SPEC_FULL.md's DOMAIN STACK).
func bindCommonFlags(cmd *cobra.Command, v *viper.Viper) {
	fs := cmd.Flags()
	fs.Int("mem-frames", 0, "physical frames the allocator owns (0 = default)")
	fs.String("disk-image", "", "backing file for the simulated disk")
	fs.Int("disk-blocks", 0, "disk image size in blocks (0 = default)")
	fs.Int("inodes", 0, "inode table size (0 = default)")
	fs.Int("log-blocks", 0, "on-disk log size in blocks (0 = default)")
	fs.Int("bufs", 0, "buffer cache size (0 = default)")
	fs.String("scheduler", "", "initial scheduler: round-robin, priority, or mlfq")
	fs.String("metrics-addr", "", "address to serve Prometheus /metrics on (empty disables it)")
	fs.String("config", "", "optional config file (yaml/json/toml) to load boot settings from")

	_ = v.BindPFlags(fs)
	v.SetEnvPrefix("KERNELSIM")
	v.AutomaticEnv()
}

// readConfigFile loads --config into v if one was given; absent is not an
// error, since every flag already has a usable default.
func readConfigFile(fs *pflag.FlagSet, v *viper.Viper) error {
	path, _ := fs.GetString("config")
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("kernelsim: reading config file %s: %w", path, err)
	}
	return nil
}
