// Package buildinfo carries version metadata stamped at link time with
// -ldflags "-X harvestcart/internal/buildinfo.Version=...".
package buildinfo

import (
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info reports the stamped values. An unstamped Commit falls back to the VCS
// revision recorded by the Go toolchain, when present.
func Info() map[string]string {
	commit := Commit
	if commit == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					commit = s.Value
				}
			}
		}
	}
	return map[string]string{
		"version": Version,
		"commit":  commit,
		"builtAt": BuiltAt,
		"go":      runtime.Version(),
	}
}
