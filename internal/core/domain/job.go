package domain

import "time"

// JobStatus is the lifecycle state of a publish job.
//
// PENDING → PROCESSING → {PUBLISHED | FAILED | SKIPPED}; PROCESSING may
// revert to PENDING only through the stale-lease reclaim path.
type JobStatus string

// Job status constants.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusPublished  JobStatus = "published"
	JobStatusFailed     JobStatus = "failed"
	JobStatusSkipped    JobStatus = "skipped"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusPublished || s == JobStatusFailed || s == JobStatusSkipped
}

// PublishTarget identifies the destination surface of a publish job.
type PublishTarget string

// Publish target constants.
const (
	TargetDigest   PublishTarget = "digest"
	TargetBreaking PublishTarget = "breaking"
	TargetReview   PublishTarget = "review"
)

// PublishJobRequest asks the queue to publish a cluster to a target at a
// scheduled time. Identity for dedup purposes is (ClusterID, Target).
type PublishJobRequest struct {
	ClusterID   string
	Target      PublishTarget
	Payload     []byte
	ScheduledAt time.Time
}

// PublishJob is a durable queue row.
//
// ProcessingOwner and UpdatedAt carry lease information only while the
// job is PROCESSING; the owner is cleared on any terminal transition.
type PublishJob struct {
	ID              string
	ClusterID       string
	Target          PublishTarget
	Status          JobStatus
	Payload         []byte
	ScheduledAt     time.Time
	PublishedAt     *time.Time
	ProcessingOwner *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PublishOutcome is the result reported by the outbound publisher.
type PublishOutcome string

// Publish outcome constants.
const (
	OutcomeCreated PublishOutcome = "created"
	OutcomeEdited  PublishOutcome = "edited"
	OutcomeSkipped PublishOutcome = "skipped"
	OutcomeFailed  PublishOutcome = "failed"
)
