// Package version reports the skillroute release.
package version

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed
func Get() string {
	v := strings.TrimSpace(versionContent)
	if v == "" {
		return "dev"
	}
	if rev := revision(); rev != "" {
		return v + "+" + rev
	}
	return v
}

// revision returns the short VCS revision stamped by the go tool, with a
// "-dirty" suffix for modified trees.
func revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if rev != "" && dirty {
		rev += "-dirty"
	}
	return rev
}
