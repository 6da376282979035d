package coach

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

type Scenario struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"slug"`
	Title     string    `gorm:"type:varchar(128);not null" json:"title"`
	Objective string    `gorm:"type:text;not null" json:"objective"`
	Persona   string    `gorm:"type:text;not null" json:"persona"`
	CreatedAt time.Time `json:"created_at"`
}

func (Scenario) TableName() string { return "scenarios" }

type Session struct {
	ID         uint64        `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID  string        `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	UserID     uint64        `gorm:"index;not null" json:"-"`
	ScenarioID uint64        `gorm:"index;not null" json:"scenario_id"`
	Status     SessionStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    *time.Time    `json:"ended_at"`
}

func (Session) TableName() string { return "coach_sessions" }

type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(26);not null;index:idx_coach_msg_session_created,priority:1" json:"session_id"`
	UserID    uint64    `gorm:"not null;index" json:"-"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index:idx_coach_msg_session_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "coach_messages" }

// Scores are flattened into three columns so the record works on both
// Postgres and the sqlite test driver.
type Scores struct {
	Clarity       float64 `gorm:"column:score_clarity;not null" json:"clarity"`
	Empathy       float64 `gorm:"column:score_empathy;not null" json:"empathy"`
	Assertiveness float64 `gorm:"column:score_assertiveness;not null" json:"assertiveness"`
}

type Feedback struct {
	ID              string    `gorm:"primaryKey;size:26" json:"id"` // ULID length
	SessionID       string    `gorm:"type:varchar(26);index;not null" json:"session_id"`
	Summary         string    `gorm:"type:text;not null" json:"summary"`
	Scores          Scores    `gorm:"embedded" json:"scores"`
	Recommendations string    `gorm:"type:text;not null" json:"recommendations"`
	CreatedAt       time.Time `json:"created_at"`
}

func (Feedback) TableName() string { return "feedback" }
