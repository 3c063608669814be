package state

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edspencer/herdctl-sub001/internal/util"
)

// readYAML reads and parses a YAML file into v. Corrupt YAML is logged and
// v is left at its zero value rather than surfacing an error (StateCorruption
// is recovered locally, never crashes the supervisor); a missing file is
// likewise treated as default-initial, distinctly from a real I/O failure.
func readYAML(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &StateIOError{Kind: "read", Path: path, Cause: err}
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		log.Printf("state: corrupt yaml at %s, using defaults: %v", path, err)
	}
	return nil
}

func appendLine(path string, line []byte) error {
	if err := util.AppendLine(path, line); err != nil {
		return &StateIOError{Kind: "append", Path: path, Cause: err}
	}
	return nil
}
