// Package version carries the build version string.
package version

// Version is the semantic version of this build. Overridable at link time:
//
//	go build -ldflags "-X aetherfm/pkg/version.Version=1.2.3"
var Version = "0.9.0"
