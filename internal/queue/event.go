// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// ImportCompletedQueue is the durable queue import events are published to.
const ImportCompletedQueue = "import.completed"

// ImportCompletedEvent is published after a spreadsheet import finishes,
// successfully or not.  It carries enough for an audit trail without
// querying the primary database.
type ImportCompletedEvent struct {
	Kind       string `json:"kind"`
	UserID     uint64 `json:"user_id"`
	UserEmail  string `json:"user_email"`
	RegionID   uint64 `json:"region_id,omitempty"`
	RegionName string `json:"region_name,omitempty"`
	File       string `json:"file"`
	Rows       int    `json:"rows"`
	Records    int    `json:"records"`
	Failed     bool   `json:"failed"`
	Error      string `json:"error,omitempty"`
	FinishedAt string `json:"finished_at"`
}
