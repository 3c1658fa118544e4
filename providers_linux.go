//go:build linux

package runbox

import (
	"github.com/happyhackingspace/runbox/internal/provider/nsjail"
)

func nsjailProviderConfig(c NsjailConfig) (any, error) {
	cfg := nsjail.DefaultConfig()
	if c.NsjailPath != "" {
		cfg.NsjailPath = c.NsjailPath
	}
	if c.Chroot != "" {
		cfg.Chroot = c.Chroot
	}
	if c.User != 0 {
		cfg.User = c.User
	}
	if c.Group != 0 {
		cfg.Group = c.Group
	}
	if c.TimeLimit != 0 {
		cfg.TimeLimit = c.TimeLimit
	}
	if c.MaxMemoryMB != 0 {
		cfg.MaxMemoryMB = c.MaxMemoryMB
	}
	if c.MaxCPUs != 0 {
		cfg.MaxCPUs = c.MaxCPUs
	}
	if c.MaxPids != 0 {
		cfg.MaxPids = c.MaxPids
	}
	if len(c.ReadOnlyBindMounts) > 0 {
		cfg.ReadOnlyBindMounts = c.ReadOnlyBindMounts
	}
	if len(c.Env) > 0 {
		cfg.Env = c.Env
	}
	cfg.EnableNetwork = c.EnableNetwork
	cfg.BaseDir = c.BaseDir
	return cfg, nil
}
