// Package version exposes build metadata.
//
// Set at link time:
//
//	go build -ldflags "-X github.com/rickgao/venue-gateway/internal/version.Version=1.2.0 \
//	                   -X github.com/rickgao/venue-gateway/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/venue-gateway/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the build metadata reported on the health endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
}

// String returns a one-line summary for startup logs.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
