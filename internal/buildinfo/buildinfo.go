// Package buildinfo holds values stamped at link time:
//
//	go build -ldflags "-X vrp/internal/buildinfo.Version=1.2.0 -X vrp/internal/buildinfo.Commit=$(git rev-parse --short HEAD)"
package buildinfo

import "runtime"

var (
	Version = "1.0.0-dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"commit":    Commit,
		"builtAt":   BuiltAt,
		"goVersion": runtime.Version(),
	}
}
