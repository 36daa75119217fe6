package app

import "time"

// Operation identifies one rrsync command invocation. Its ID tags every
// log line the command writes.
type Operation struct {
	ID        string
	Command   string
	StartedAt time.Time
}

// NewOperation creates an Operation for command started at now.
func NewOperation(command string, now time.Time) *Operation {
	now = now.UTC()
	return &Operation{
		ID:        command + "-" + now.Format("20060102T150405Z"),
		Command:   command,
		StartedAt: now,
	}
}
