package main

import "os"

var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := newRootCmd(version, commit)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
