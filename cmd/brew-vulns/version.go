package main

import (
	"fmt"
	"runtime"
)

var (
	version = "0.2.0"
	commit  = "HEAD"
	date    = "2026-01-12"
)

func versionString() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s %s/%s)",
		version, commit, date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
