// Package version carries the build version, set at link time with
// -ldflags "-X github.com/ndewijer/custody-ingest/internal/version.Version=v1.2.3".
package version

// Version is the running build.
var Version = "dev"
