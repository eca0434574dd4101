// Package monitoring reports failed planning and decoding runs to an error
// tracker.
package monitoring

import "time"

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Flush(timeout time.Duration) bool
}

// NopMonitor drops every report.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Flush(time.Duration) bool                  { return true }

// RunTags returns the tags attached to a failed run. Empty values are
// omitted.
func RunTags(stage, campaign, runID, outcome, reason string) map[string]string {
	tags := map[string]string{"stage": stage}
	for k, v := range map[string]string{
		"campaign": campaign,
		"run_id":   runID,
		"outcome":  outcome,
		"reason":   reason,
	} {
		if v != "" {
			tags[k] = v
		}
	}
	return tags
}
