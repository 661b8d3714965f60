// Package build carries version metadata stamped in by the linker:
//
//	go build -ldflags "-X github.com/carnet-scolaire/carnet/internal/build.Version=v1.2.0 \
//	  -X github.com/carnet-scolaire/carnet/internal/build.Commit=$(git rev-parse --short HEAD)"
package build

import "fmt"

var (
	Version = "dev"
	Commit  = "unknown"
)

// String formats the metadata for `carnet version` and the startup log line.
func String() string {
	return fmt.Sprintf("carnet %s (%s)", Version, Commit)
}
