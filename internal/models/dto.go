package models

import (
	"encoding/json"
	"time"
)

// ===== ATTEMPT REQUESTS =====

type StartAttemptRequest struct {
	AssignmentID uint `json:"assignment_id" validate:"required"`
}

// AttemptProgressRequest carries the full answer map plus telemetry for both
// save and submit. Answers are last-write-wins; the map replaces whatever was
// stored before.
type AttemptProgressRequest struct {
	Answers            map[string]json.RawMessage `json:"answers"`
	TabSwitches        json.RawMessage            `json:"tab_switches"`
	CopyAttempts       json.RawMessage            `json:"copy_attempts"`
	SuspiciousActivity json.RawMessage            `json:"suspicious_activity"`
}

// ===== ATTEMPT RESPONSES =====

// QuestionView is a question as shown to a student. CorrectAnswer is
// populated only for completed attempts.
type QuestionView struct {
	ID            uint            `json:"id"`
	QuestionType  QuestionType    `json:"question_type"`
	QuestionText  string          `json:"question_text"`
	Options       json.RawMessage `json:"options,omitempty"`
	CorrectAnswer json.RawMessage `json:"correct_answer,omitempty"`
	Marks         float64         `json:"marks"`
	MediaURL      *string         `json:"media_url,omitempty"`
}

type StartAttemptResponse struct {
	AttemptID       uint           `json:"attempt_id"`
	StartedAt       time.Time      `json:"started_at"`
	DurationMinutes int            `json:"duration_minutes"`
	Resumed         bool           `json:"resumed"`
	Questions       []QuestionView `json:"questions"`
}

type AttemptDetailResponse struct {
	Attempt   *Attempt       `json:"attempt"`
	Questions []QuestionView `json:"questions"`
}

type SubmitAttemptResponse struct {
	Score            float64 `json:"score"`
	MaxScore         float64 `json:"max_score"`
	Percentage       float64 `json:"percentage"`
	Passed           bool    `json:"passed"`
	TimeSpentSeconds int     `json:"time_spent_seconds"`
}

// QuestionResult is one row of the graded breakdown for a completed attempt.
type QuestionResult struct {
	QuestionID    uint            `json:"question_id"`
	QuestionText  string          `json:"question_text"`
	QuestionType  QuestionType    `json:"question_type"`
	StudentAnswer json.RawMessage `json:"student_answer"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	IsCorrect     bool            `json:"is_correct"`
	EarnedMarks   float64         `json:"earned_marks"`
	Marks         float64         `json:"marks"`
}

type AttemptResultResponse struct {
	Attempt    *Attempt                    `json:"attempt"`
	Results    []QuestionResult            `json:"results"`
	Proctoring map[ProctoringEventType]int `json:"proctoring,omitempty"`
}

// ===== PAGINATION =====

type ListAttemptsParams struct {
	Page      int     `json:"page" validate:"min=0"`
	Size      int     `json:"size" validate:"min=1,max=100"`
	StudentID *string `json:"student_id"`
	Completed *bool   `json:"completed"`
	SortBy    string  `json:"sort_by"`
	SortDir   string  `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type PaginatedResponse struct {
	Content       interface{} `json:"content"`
	TotalElements int64       `json:"total_elements"`
	TotalPages    int         `json:"total_pages"`
	Size          int         `json:"size"`
	Page          int         `json:"page"`
}

// ===== GENERIC RESPONSES =====

type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value"`
	Code    string `json:"code"`
}

type ErrorResponse struct {
	Error            string                    `json:"error"`
	Message          string                    `json:"message"`
	Code             string                    `json:"code"`
	Details          interface{}               `json:"details,omitempty"`
	Timestamp        time.Time                 `json:"timestamp"`
	Path             string                    `json:"path"`
	ValidationErrors []ValidationErrorResponse `json:"validation_errors,omitempty"`
}

type SuccessResponse struct {
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
