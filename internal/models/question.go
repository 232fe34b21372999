package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "singlechoice"
	MultipleChoice QuestionType = "multiplechoice"
	TrueFalse      QuestionType = "truefalse"
	ShortAnswer    QuestionType = "shortanswer"
	Ordering       QuestionType = "ordering"
	Matching       QuestionType = "matching"
	FillBlanks     QuestionType = "fillblanks"
	ImageBased     QuestionType = "imagebased"
)

// ValidQuestionTypes is the closed set the grader understands.
var ValidQuestionTypes = map[QuestionType]bool{
	SingleChoice:   true,
	MultipleChoice: true,
	TrueFalse:      true,
	ShortAnswer:    true,
	Ordering:       true,
	Matching:       true,
	FillBlanks:     true,
	ImageBased:     true,
}

type Question struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	TestID       uint         `json:"test_id" gorm:"not null;index"`
	QuestionType QuestionType `json:"question_type" gorm:"not null;index" validate:"required"`
	QuestionText string       `json:"question_text" gorm:"type:text;not null" validate:"required"`

	// Options and correct answer are stored as JSONB; their shape depends on
	// QuestionType. The correct answer is never serialized to students while
	// an attempt is open.
	Options       datatypes.JSON `json:"options" gorm:"type:jsonb"`
	CorrectAnswer datatypes.JSON `json:"correct_answer,omitempty" gorm:"type:jsonb"`

	Marks       float64 `json:"marks" gorm:"not null;default:1" validate:"gt=0"`
	OrderNumber int     `json:"order_number" gorm:"not null;default:0;index"`
	MediaURL    *string `json:"media_url" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Test Test `json:"-" gorm:"foreignKey:TestID"`
}

func (Question) TableName() string {
	return "questions"
}

// GradedAnswer is the frozen per-question record written into
// Attempt.Answers when an attempt is submitted.
type GradedAnswer struct {
	Answer      json.RawMessage `json:"answer"`
	IsCorrect   bool            `json:"is_correct"`
	EarnedMarks float64         `json:"earned_marks"`
}
