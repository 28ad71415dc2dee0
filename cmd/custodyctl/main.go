package main

import (
	"os"

	"github.com/ndewijer/custody-ingest/cmd/custodyctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
