package main

import (
	"os"

	"github.com/ooi-datateam/ingestctl/cmd"
	"github.com/ooi-datateam/ingestctl/internal/output"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := cmd.Execute(version, commit, date); err != nil {
		output.WriteError(os.Stderr, err)
		os.Exit(1)
	}
}
