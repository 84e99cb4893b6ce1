// Package version holds the release identifier, overridable at link time
// with -ldflags "-X salsatempo/pkg/version.Version=...".
package version

import (
	"fmt"
	"runtime"
)

var Version = "v0.1.0"

// String is the banner printed by --version.
func String() string {
	return fmt.Sprintf("%s (%s %s/%s)", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
