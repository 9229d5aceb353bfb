package models

import "time"

// RunStatus is the outcome of one pipeline run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
	RunStatusLocked  RunStatus = "locked"
)

// RunRecord is one entry of the run journal.
type RunRecord struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	Status         RunStatus
	DryRun         bool
	CVChanged      bool
	ImageChanged   bool
	SkillsUpdated  bool
	ImageUpdated   bool
	ProjectsAdded  int
	ProjectsFailed int
	Error          string
}

// Duration returns how long the run took.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
