package main

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// BootConfig is every tunable cmd/kernelsim needs to boot a simulated
// instance: usable frame count, the backing disk image, the on-disk
// layout's block/inode/log counts, buffer cache size, and the initially
// active scheduler. Loaded through viper so a boot can be driven by flags,
// environment variables, or a config file interchangeably, matching
// SPEC_FULL.md's ambient-stack configuration entry.
type BootConfig struct {
	MemFrames   int    `mapstructure:"mem-frames"`
	DiskImage   string `mapstructure:"disk-image"`
	DiskBlocks  int    `mapstructure:"disk-blocks"`
	NInodes     int    `mapstructure:"inodes"`
	NLogBlocks  int    `mapstructure:"log-blocks"`
	NBufs       int    `mapstructure:"bufs"`
	Scheduler   string `mapstructure:"scheduler"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

func defaultConfig() BootConfig {
	return BootConfig{
		MemFrames:   4096,
		DiskImage:   "kernelsim.img",
		DiskBlocks:  8192,
		NInodes:     200,
		NLogBlocks:  30,
		NBufs:       64,
		Scheduler:   "round-robin",
		MetricsAddr: "",
	}
}

// loadConfig decodes whatever v already holds (flags bound by
// bindCommonFlags, an optional --config file read by readConfigFile) into
// a BootConfig through mapstructure, starting from defaultConfig() — the same viper+mapstructure
// pairing the gcsfuse-derived dependency surface uses for its own boot
// configuration (SPEC_FULL.md's DOMAIN STACK).
func loadConfig(v *viper.Viper) (BootConfig, error) {
	cfg := defaultConfig()
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)
	var out BootConfig
	if err := v.Unmarshal(&out, viper.DecodeHook(decodeHook)); err != nil {
		return cfg, fmt.Errorf("kernelsim: decoding boot config: %w", err)
	}
	if out.Scheduler == "" {
		out.Scheduler = cfg.Scheduler
	}
	out.Scheduler = strings.ToLower(out.Scheduler)
	if out.MemFrames <= 0 {
		out.MemFrames = cfg.MemFrames
	}
	if out.DiskBlocks <= 0 {
		out.DiskBlocks = cfg.DiskBlocks
	}
	if out.NInodes <= 0 {
		out.NInodes = cfg.NInodes
	}
	if out.NLogBlocks <= 0 {
		out.NLogBlocks = cfg.NLogBlocks
	}
	if out.NBufs <= 0 {
		out.NBufs = cfg.NBufs
	}
	if out.DiskImage == "" {
		out.DiskImage = cfg.DiskImage
	}
	return out, nil
}
