package services

import (
	"context"
	"encoding/json"

	"github.com/edtestlab/exam-engine/internal/models"
)

// ===== REQUEST/RESPONSE DTOs =====

// Wire DTOs live in models; aliased here so callers only import services.
type StartAttemptRequest = models.StartAttemptRequest
type AttemptProgressRequest = models.AttemptProgressRequest
type StartAttemptResponse = models.StartAttemptResponse
type AttemptDetailResponse = models.AttemptDetailResponse
type SubmitAttemptResponse = models.SubmitAttemptResponse
type AttemptResultResponse = models.AttemptResultResponse

// ClientInfo carries request metadata recorded on the attempt row.
type ClientInfo struct {
	IPAddress *string
	UserAgent *string
}

// AttemptGrade is the outcome of grading a full answer map.
type AttemptGrade struct {
	Graded map[string]models.GradedAnswer
	Score  float64
}

// ===== SERVICE INTERFACES =====

type AttemptService interface {
	// Start runs the eligibility checks and either resumes the open attempt
	// or creates a new one.
	Start(ctx context.Context, req *StartAttemptRequest, studentID string, client ClientInfo) (*StartAttemptResponse, error)

	// GetByID returns the attempt with its question set. Correct answers are
	// stripped while the attempt is open. Other students' attempts read as
	// not found.
	GetByID(ctx context.Context, id uint, studentID string) (*AttemptDetailResponse, error)

	// SaveProgress replaces the stored answer map and telemetry. Completed
	// attempts read as not found.
	SaveProgress(ctx context.Context, id uint, req *AttemptProgressRequest, studentID string) error

	// Submit persists final answers, grades them, and completes the attempt
	// exactly once.
	Submit(ctx context.Context, id uint, req *AttemptProgressRequest, studentID string) (*SubmitAttemptResponse, error)

	// GetResult returns the graded per-question breakdown of a completed
	// attempt, for the owner or a teacher/admin.
	GetResult(ctx context.Context, id uint, userID string) (*AttemptResultResponse, error)

	// ListByAssignment is the teacher monitoring view.
	ListByAssignment(ctx context.Context, assignmentID uint, params models.ListAttemptsParams, userID string) (*models.PaginatedResponse, error)
}

type GradingService interface {
	// IsCorrect grades a single submission against the stored correct
	// answer. Malformed input is simply wrong, never an error.
	IsCorrect(questionType models.QuestionType, correctAnswer, submitted json.RawMessage) bool

	// GradeAttempt grades a full answer map against the question set.
	// Unanswered questions earn zero and are recorded as incorrect.
	GradeAttempt(questions []*models.Question, answers map[string]json.RawMessage) *AttemptGrade
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Attempt() AttemptService
	Grading() GradingService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
