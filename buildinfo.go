package main

import "fmt"

var (
	Version   = "dev" // default fallback
	Commit    = "none"
	BuildTime = "unknown"
)

func buildVersion() string {
	return fmt.Sprintf("speedd %s (commit %s, built %s)", Version, Commit, BuildTime)
}
