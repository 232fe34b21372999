package models

import (
	"time"

	"gorm.io/datatypes"
)

// Attempt is one student's run through a test under a specific assignment.
// Answers live on the row as a JSONB map (question id -> submission); on
// submit the map is frozen into graded form and the row never changes again.
//
// The partial unique index keeps at most one open attempt per
// (assignment, student); a second concurrent start hits the constraint
// instead of creating a duplicate.
type Attempt struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	AssignmentID uint   `json:"assignment_id" gorm:"not null;index;uniqueIndex:idx_open_attempt,where:is_completed = false"`
	StudentID    string `json:"student_id" gorm:"not null;index;size:255;uniqueIndex:idx_open_attempt,where:is_completed = false"`

	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt *time.Time `json:"submitted_at"`
	IsCompleted bool       `json:"is_completed" gorm:"not null;default:false;index"`

	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb"`

	// Scoring; MaxScore is snapshotted from question marks at creation.
	Score            float64 `json:"score"`
	MaxScore         float64 `json:"max_score" gorm:"not null"`
	Percentage       float64 `json:"percentage"`
	Passed           bool    `json:"passed"`
	TimeSpentSeconds int     `json:"time_spent_seconds"`

	// Telemetry, stored verbatim. Advisory only.
	TabSwitches        int            `json:"tab_switches"`
	CopyAttempts       int            `json:"copy_attempts"`
	SuspiciousActivity datatypes.JSON `json:"suspicious_activity" gorm:"type:jsonb"`

	IPAddress *string `json:"ip_address" gorm:"size:45"`
	UserAgent *string `json:"user_agent" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Assignment Assignment `json:"-" gorm:"foreignKey:AssignmentID"`
	Student    User       `json:"-" gorm:"foreignKey:StudentID"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// Open reports whether the attempt still accepts saves and a submit.
func (a *Attempt) Open() bool {
	return !a.IsCompleted
}
