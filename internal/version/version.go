// Package version holds build metadata stamped in via -ldflags, surfaced in
// startup logs and the /api/config endpoint.
package version

var (
	// Version is the release version, "dev" for unstamped builds.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String renders the version with its commit, e.g. "1.2.0 (4f9c2d1)".
func String() string {
	return Version + " (" + GitSHA + ")"
}
