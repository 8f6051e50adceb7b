// Package version reports build metadata. The variables are set at link time:
//
//	go build -ldflags "-X github.com/matiasleandrokruk/codeassist/internal/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// String returns the one-line version banner.
func String() string {
	return fmt.Sprintf("codeassist version %s (commit %s, built %s, %s)", Version, Commit, BuildTime, runtime.Version())
}
