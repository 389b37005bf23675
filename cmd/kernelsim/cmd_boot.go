package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newBootCmd() *cobra.Command {
	v := viper.New()
	var fresh bool

	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Boot a simulated kernel instance and run its bring-up scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := readConfigFile(cmd.Flags(), v); err != nil {
				return err
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if err := removeImageIfRequested(cfg.DiskImage, fresh); err != nil {
				return err
			}

			sim, err := bootFresh(cfg)
			if err != nil {
				return err
			}
			defer sim.Close()

			var srv interface{ Shutdown(context.Context) error }
			if cfg.MetricsAddr != "" {
				s, _ := serveMetrics(cmd.Context(), cfg.MetricsAddr, 500*time.Millisecond, sim.Kernel, sim.Kernel.Alloc)
				srv = s
				fmt.Fprintf(cmd.OutOrStdout(), "metrics listening on %s\n", cfg.MetricsAddr)
			}

			init := procByPid(sim.Kernel, sim.Cpu0, sim.Kernel.InitPid)
			if init == nil {
				return fmt.Errorf("kernelsim: init process missing after boot")
			}

			for i := 0; i < 10; i++ {
				sim.Kernel.Tick(sim.Cpu0)
			}

			lines := runScenarios(sim.Kernel, sim.Cpu0, init)
			failed := false
			for _, line := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
				if len(line) >= 4 && line[:4] == "FAIL" {
					failed = true
				}
			}

			switches, idle, run := sim.Kernel.Sched.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "scheduler: %d switches, %d idle steps, %d run steps\n", switches, idle, run)
			free, total := sim.Kernel.Alloc.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "frames: %d/%d free\n", free, total)

			if srv != nil {
				_ = srv.Shutdown(context.Background())
			}
			if failed {
				return fmt.Errorf("kernelsim: one or more boot scenarios failed")
			}
			return nil
		},
	}

	bindCommonFlags(cmd, v)
	cmd.Flags().BoolVar(&fresh, "fresh", true, "remove any existing disk image before formatting a new one")
	return cmd
}
