package model

import "time"

// Sync run terminal statuses. A run row is created as "running" and always
// finishes as success or failed, with CompletedAt set, even on early abort.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// SyncRun records one feed sync or correlation pass with its summary counts.
type SyncRun struct {
	Key     string `json:"_key,omitempty"`
	ObjType string `json:"objtype,omitempty"`

	// Source is the feed name, or "correlate:<projectID>" for passes.
	Source string `json:"source"`
	Status string `json:"status"`

	New     int    `json:"new"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewSyncRun creates a running run row for a source, keyed by run id.
func NewSyncRun(key, source string) *SyncRun {
	return &SyncRun{
		Key:       key,
		ObjType:   "SyncRun",
		Source:    source,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Finish marks the run terminal. An empty errMsg means success.
func (r *SyncRun) Finish(errMsg string) {
	now := time.Now().UTC()
	r.CompletedAt = &now
	if errMsg == "" {
		r.Status = RunStatusSuccess
	} else {
		r.Status = RunStatusFailed
		r.Error = errMsg
	}
}
