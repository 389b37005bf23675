package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newFsckCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "fsck",
		Short: "Mount an existing disk image and report orphan reclamation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := readConfigFile(cmd.Flags(), v); err != nil {
				return err
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			sim, err := bootExisting(cfg)
			if err != nil {
				return err
			}
			defer sim.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "mounted %s: %d inodes, %d reclaimed at mount\n",
				cfg.DiskImage, sim.Kernel.FS.Sb.NInodes, sim.Kernel.FS.Reclaimed)
			if sim.Kernel.FS.Reclaimed > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "reclaimOrphans truncated and freed %d inode(s) left at nlink 0 by an unclean shutdown\n", sim.Kernel.FS.Reclaimed)
			}
			return nil
		},
	}

	bindCommonFlags(cmd, v)
	return cmd
}
