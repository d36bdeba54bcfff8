package version

import "fmt"

var (
	// Version is the current recorder version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the build identity printed by -version and logged at start.
func String() string {
	return fmt.Sprintf("gps-recorder %s (%s, built %s)", Version, GitSHA, BuildTime)
}
