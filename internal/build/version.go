package build

import (
	"runtime"
	"runtime/debug"
)

// rawVersion is the semantic version of this build. It is bumped by hand
// on release.
const rawVersion = "0.1.0"

// Commit is set via -ldflags at link time by a release build (includes
// any dirty/tag suffix). Empty for local/dev builds.
var Commit string

// GoVersion is the Go runtime version used to build this binary.
var GoVersion = runtime.Version()

// Version returns the semantic version string for this build.
func Version() string {
	return rawVersion
}

// CommitHash returns the VCS commit hash embedded by the Go toolchain's
// build-info mechanism, or the empty string if unavailable (e.g. when
// built outside of a VCS checkout).
func CommitHash() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}

	return ""
}
