package main

import (
	"os"

	_ "time/tzdata" // embed IANA timezone database for containers without tzdata

	"github.com/mjarkko/scripter/internal/cli"
)

func main() {
	// cobra's SilenceErrors is false, so Execute already printed the
	// error to stderr; just set the exit code here.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
