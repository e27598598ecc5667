package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Version information
var (
	// Version in string format - set dynamically at build time
	Version = "1.0.0"
	// GitCommit is the git commit that was compiled - set dynamically at build time
	GitCommit = ""
	// BuildDate is the date of the build - set dynamically at build time
	BuildDate = ""
	// GoVersion is the version of go used to compile
	GoVersion = runtime.Version()
	// Platform is the operating system and architecture combination
	Platform = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	// Name of the application
	AppName = "sparrow"
	// Description of the application
	Description = "A minimal HTTP/1.1 listener built on raw TCP sockets"
)

// ServerHeader returns the value the demo sends in its Server header
func ServerHeader() string {
	return AppName + "/" + Version
}

// GetVersionInfo returns a formatted version string with additional build information
func GetVersionInfo() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s version %s", AppName, Version)
	if GitCommit != "" {
		fmt.Fprintf(&sb, "\nGit commit: %s", GitCommit)
	}
	if BuildDate != "" {
		fmt.Fprintf(&sb, "\nBuild date: %s", BuildDate)
	}
	fmt.Fprintf(&sb, "\nGo version: %s\nPlatform: %s", GoVersion, Platform)
	return sb.String()
}
