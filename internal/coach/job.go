package coach

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// FeedbackJob tracks one async feedback-generation request.
type FeedbackJob struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID    uint64 `gorm:"not null;index:uniq_fb_user_idempo,unique,priority:1"`
	SessionID string `gorm:"size:26;index;not null"`

	// Unique per user, not globally: recovery in CreateJobOrGetExisting looks
	// the job up by (user_id, idempotency_key).
	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_fb_user_idempo,unique,priority:2" json:"idempotency_key"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	ResultFeedbackID *string `gorm:"size:26;index"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (FeedbackJob) TableName() string { return "feedback_jobs" }
