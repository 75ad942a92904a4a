package domain

import "time"

// JobCardStatusHistory is an immutable audit entry for a status change.
type JobCardStatusHistory struct {
	ID         string
	JobCardID  string
	FromStatus *JobStatus
	ToStatus   JobStatus
	ChangedBy  string
	Reason     string
	ChangedAt  time.Time
}
