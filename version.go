// Package core provides version information for the broker and worker
// binaries.
package core

// VERSION of this build, set during the build process with -ldflags.
var VERSION = "undefined"
