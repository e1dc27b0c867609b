// Package fswatch implements the file-mutation oracle: a per-path
// snapshot of modification times used to decide whether a watched path
// changed since the last scan.
package fswatch

import (
	"os"
	"path/filepath"
)

// Oracle holds per-(path, recursive) bookkeeping across successive Scan
// calls. It is not safe for concurrent use — the scheduler loop polls it
// from a single goroutine.
type Oracle struct {
	state map[scanKey]map[string]int64
}

// scanKey identifies one watched (path, recursive) pair.
type scanKey struct {
	path      string
	recursive bool
}

func New() *Oracle {
	return &Oracle{state: make(map[scanKey]map[string]int64)}
}

// Scan reports whether path changed since the previous call with the
// same path and recursive flag. A path that doesn't exist clears the
// stored state for that pair and
// reports no change; the first observation of a path is never a change
// (there is no history to compare against, so reporting true would
// stampede every trigger on daemon start); reappearance after a deleted
// path requires a second post-reappearance scan, since the first
// rebuilds the snapshot from nothing, same as a brand new path.
func (o *Oracle) Scan(path string, recursive bool) bool {
	key := scanKey{path: path, recursive: recursive}
	info, err := os.Stat(path)
	if err != nil {
		delete(o.state, key)
		return false
	}

	current := make(map[string]int64)
	switch {
	case info.Mode().IsRegular():
		if mtime, ok := statMtime(path); ok {
			current[path] = mtime
		}
	case info.IsDir():
		collectDir(path, recursive, current)
	default:
		return false
	}

	previous, seen := o.state[key]
	o.state[key] = current

	if !seen {
		return false
	}
	if len(current) != len(previous) {
		return true
	}
	for p, mtime := range current {
		prevMtime, ok := previous[p]
		if !ok || prevMtime != mtime {
			return true
		}
	}
	return false
}

func collectDir(base string, recursive bool, out map[string]int64) {
	if recursive {
		_ = filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if mtime, ok := statMtime(path); ok {
				out[path] = mtime
			}
			return nil
		})
		return
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := filepath.Join(base, entry.Name())
		if mtime, ok := statMtime(full); ok {
			out[full] = mtime
		}
	}
}

func statMtime(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.ModTime().UnixNano(), true
}
