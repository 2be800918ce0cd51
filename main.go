package main

import "signet/cmd"

// Version is stamped by the release build via -ldflags.
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
