// Command herdctl supervises a fleet of autonomous Claude-powered agents.
package main

import (
	"os"

	"github.com/edspencer/herdctl-sub001/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
