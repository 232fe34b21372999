package models

import (
	"time"

	"gorm.io/gorm"
)

type Test struct {
	ID              uint    `json:"id" gorm:"primaryKey"`
	Title           string  `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description     *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	DurationMinutes int     `json:"duration_minutes" gorm:"not null" validate:"required,min=1,max=600"`
	PassingScore    int     `json:"passing_score" gorm:"not null" validate:"min=0,max=100"`
	MaxAttempts     int     `json:"max_attempts" gorm:"default:1" validate:"min=1,max=10"`

	// Display and anti-cheating flags
	ShuffleQuestions   bool `json:"shuffle_questions" gorm:"not null;default:false"`
	BlockCopyPaste     bool `json:"block_copy_paste" gorm:"not null;default:false"`
	TrackTabSwitches   bool `json:"track_tab_switches" gorm:"not null;default:false"`
	FullscreenRequired bool `json:"fullscreen_required" gorm:"not null;default:false"`

	IsPublished bool   `json:"is_published" gorm:"not null;default:false;index"`
	SubjectID   *uint  `json:"subject_id" gorm:"index"`
	TeacherID   string `json:"teacher_id" gorm:"not null;index;size:255"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions   []Question   `json:"questions,omitempty" gorm:"foreignKey:TestID"`
	Assignments []Assignment `json:"assignments,omitempty" gorm:"foreignKey:TestID"`
	Teacher     User         `json:"-" gorm:"foreignKey:TeacherID"`

	// Computed fields (not stored)
	QuestionCount int     `json:"question_count" gorm:"-"`
	TotalMarks    float64 `json:"total_marks" gorm:"-"`
}

func (Test) TableName() string {
	return "tests"
}
