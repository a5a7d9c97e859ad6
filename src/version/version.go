package version

import "fmt"

var (
	// Release is the current release of the application
	Release = "1.2.0"
	// Version is the current version of the application
	Version string
	// GitHash is the git hash of the commit that was used to build the application
	GitHash string
)

// String formats the release with the build version and hash when they were set at link time.
func String() string {
	s := Release
	if Version != "" {
		s += " (" + Version + ")"
	}
	if GitHash != "" {
		s = fmt.Sprintf("%s %.8s", s, GitHash)
	}
	return s
}
