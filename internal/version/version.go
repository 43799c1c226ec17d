// Package version holds build metadata set through -ldflags, e.g.
// go build -ldflags "-X git.home.luguber.info/inful/cubepio/internal/version.Version=v0.3.0".
package version

import "fmt"

var Version = "dev"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String is the text printed by --version.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
