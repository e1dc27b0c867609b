// Package timefmt renders stored UTC instants in the operator's local
// zone for display in the CLI (runs list/show, schedule list).
package timefmt

import "time"

// ToLocalDisplay formats t in the process's local zone. A nil t (no
// instant recorded, e.g. a run still in progress) renders as "".
func ToLocalDisplay(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format("2006-01-02 03:04:05 PM MST")
}
