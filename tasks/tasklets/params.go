// Package tasklets provides the concrete cooperative automation tasks
// the supervisor registers with tasks.Host: healing, combat, and
// cavebot (pathing via a compiled recording). Each reads its tunable
// parameters from a small JSON file under the task host's configured
// tasks directory, the "optional external parameter file" design note
// 9/SPEC_FULL.md section 4.9 describes fsnotify as watching for edits
// to.
//
// New code off spec sections 4.9/4.11 (combat/healing/pathing are
// named in section 1's purpose statement but specified only at the
// BotContext boundary); grounded on tasks/settings.go's reader-by-path
// JSON persistence shape, reused here for read-only parameter files
// rather than host-owned settings.
package tasklets

import (
	"encoding/json"
	"os"
)

// loadParams reads a JSON parameter file into dst, leaving dst
// unchanged (at its caller-supplied defaults) if the file does not
// exist yet — a task with no parameter file on disk just runs with
// its defaults.
func loadParams(path string, dst any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
