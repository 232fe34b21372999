package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/edtestlab/exam-engine/internal/events"
	"github.com/edtestlab/exam-engine/internal/models"
	"github.com/edtestlab/exam-engine/internal/repositories"
	"github.com/edtestlab/exam-engine/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	grading   GradingService
	publisher events.EventPublisher
}

func NewAttemptService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	grading GradingService,
	publisher events.EventPublisher,
) AttemptService {
	return &attemptService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		grading:   grading,
		publisher: publisher,
	}
}

// ===== START =====

// Start checks eligibility in order (membership, window, resume, attempt
// limit) and returns either the resumed open attempt or a fresh one.
func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest, studentID string, client ClientInfo) (*StartAttemptResponse, error) {
	s.logger.Info("Starting attempt",
		"assignment_id", req.AssignmentID,
		"student_id", studentID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	assignment, err := s.repo.Assignment().GetWithTest(ctx, nil, req.AssignmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	test := &assignment.Test

	if err := s.checkEligibility(ctx, assignment, studentID); err != nil {
		return nil, err
	}

	// Resume before counting: an open attempt never burns a slot.
	if open, err := s.repo.Attempt().GetOpenAttempt(ctx, nil, assignment.ID, studentID); err == nil {
		s.logger.Info("Resuming open attempt",
			"attempt_id", open.ID,
			"student_id", studentID)
		return s.buildStartResponse(ctx, open, test, true)
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check for open attempt: %w", err)
	}

	count, err := s.repo.Attempt().CountForAssignment(ctx, nil, assignment.ID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	if count >= int64(test.MaxAttempts) {
		return nil, ErrMaxAttemptsReached
	}

	attempt, err := s.createAttempt(ctx, assignment, studentID, client)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"assignment_id", assignment.ID,
		"student_id", studentID,
		"max_score", attempt.MaxScore)

	return s.buildStartResponse(ctx, attempt, test, false)
}

// createAttempt inserts the row with the max score snapshot taken inside the
// same transaction. A duplicate-key error means a concurrent start won the
// race, so the open attempt is resumed instead.
func (s *attemptService) createAttempt(ctx context.Context, assignment *models.Assignment, studentID string, client ClientInfo) (*models.Attempt, error) {
	attempt := &models.Attempt{
		AssignmentID:       assignment.ID,
		StudentID:          studentID,
		StartedAt:          time.Now(),
		Answers:            emptyJSONObject(),
		SuspiciousActivity: emptyJSONArray(),
		IPAddress:          client.IPAddress,
		UserAgent:          client.UserAgent,
	}

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		maxScore, err := txRepo.Question().SumMarks(ctx, nil, assignment.TestID)
		if err != nil {
			return fmt.Errorf("failed to sum question marks: %w", err)
		}
		attempt.MaxScore = maxScore

		return txRepo.Attempt().Create(ctx, nil, attempt)
	})
	if err == nil {
		return attempt, nil
	}

	if repositories.IsDuplicateKeyError(err) {
		open, ferr := s.repo.Attempt().GetOpenAttempt(ctx, nil, assignment.ID, studentID)
		if ferr != nil {
			return nil, fmt.Errorf("failed to fetch attempt after duplicate start: %w", ferr)
		}
		s.logger.Info("Concurrent start detected, resuming existing attempt",
			"attempt_id", open.ID,
			"student_id", studentID)
		return open, nil
	}

	return nil, fmt.Errorf("failed to create attempt: %w", err)
}

// ===== GET =====

func (s *attemptService) GetByID(ctx context.Context, id uint, studentID string) (*AttemptDetailResponse, error) {
	attempt, err := s.getOwnedAttempt(ctx, id, studentID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questionsForAttempt(ctx, attempt)
	if err != nil {
		return nil, err
	}

	return &AttemptDetailResponse{
		Attempt:   attempt,
		Questions: buildQuestionViews(questions, attempt.IsCompleted),
	}, nil
}

// ===== SAVE PROGRESS =====

// SaveProgress replaces the stored answer map wholesale and records
// telemetry. The conditional update only matches open rows, so a completed
// attempt reads as not found.
func (s *attemptService) SaveProgress(ctx context.Context, id uint, req *AttemptProgressRequest, studentID string) error {
	if verrs := s.validator.ValidateProgress(req); verrs.HasErrors() {
		return verrs
	}

	attempt, err := s.getOwnedAttempt(ctx, id, studentID)
	if err != nil {
		return err
	}
	if attempt.IsCompleted {
		return ErrAttemptNotFound
	}

	updates, err := progressUpdates(req)
	if err != nil {
		return err
	}

	rows, err := s.repo.Attempt().SaveProgress(ctx, nil, id, updates)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	if rows == 0 {
		// Completed between the read and the update.
		return ErrAttemptNotFound
	}

	s.logger.Debug("Progress saved",
		"attempt_id", id,
		"answer_count", len(req.Answers))

	return nil
}

// ===== SUBMIT =====

// Submit grades the final answer map, freezes it into graded form, and
// completes the attempt. The conditional update guarantees this happens at
// most once per attempt.
func (s *attemptService) Submit(ctx context.Context, id uint, req *AttemptProgressRequest, studentID string) (*SubmitAttemptResponse, error) {
	if verrs := s.validator.ValidateProgress(req); verrs.HasErrors() {
		return nil, verrs
	}

	attempt, err := s.getOwnedAttempt(ctx, id, studentID)
	if err != nil {
		return nil, err
	}
	if attempt.IsCompleted {
		return nil, ErrAttemptAlreadySubmitted
	}

	assignment, err := s.repo.Assignment().GetWithTest(ctx, nil, attempt.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	test := &assignment.Test

	questions, err := s.repo.Question().GetByTest(ctx, nil, assignment.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	answers := req.Answers
	if answers == nil {
		// Submit without a body grades whatever the last save stored.
		answers, err = decodeAnswerMap(attempt.Answers)
		if err != nil {
			return nil, fmt.Errorf("failed to decode stored answers: %w", err)
		}
	}

	grade := s.grading.GradeAttempt(questions, answers)

	now := time.Now()
	percentage := 0.0
	if attempt.MaxScore > 0 {
		percentage = grade.Score / attempt.MaxScore * 100
	}
	passed := percentage >= float64(test.PassingScore)
	timeSpent := int(now.Sub(attempt.StartedAt).Seconds())

	gradedJSON, err := json.Marshal(grade.Graded)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graded answers: %w", err)
	}

	updates := telemetryUpdates(req)
	updates["answers"] = gradedJSON
	updates["score"] = grade.Score
	updates["percentage"] = percentage
	updates["passed"] = passed
	updates["submitted_at"] = now
	updates["time_spent_seconds"] = timeSpent

	rows, err := s.repo.Attempt().Finalize(ctx, nil, id, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize attempt: %w", err)
	}
	if rows == 0 {
		return nil, ErrAttemptAlreadySubmitted
	}

	s.logger.Info("Attempt submitted",
		"attempt_id", id,
		"student_id", studentID,
		"score", grade.Score,
		"max_score", attempt.MaxScore,
		"percentage", percentage,
		"passed", passed)

	s.publishSubmitted(attempt, grade.Score, percentage, passed, now)

	return &SubmitAttemptResponse{
		Score:            grade.Score,
		MaxScore:         attempt.MaxScore,
		Percentage:       percentage,
		Passed:           passed,
		TimeSpentSeconds: timeSpent,
	}, nil
}

// ===== RESULT =====

func (s *attemptService) GetResult(ctx context.Context, id uint, userID string) (*AttemptResultResponse, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.StudentID != userID {
		role, rerr := s.getUserRole(ctx, userID)
		if rerr != nil {
			return nil, rerr
		}
		if role != models.RoleTeacher && role != models.RoleAdmin {
			return nil, ErrAttemptNotFound
		}
	}

	if !attempt.IsCompleted {
		return nil, ErrAttemptNotFound
	}

	questions, err := s.questionsForAttempt(ctx, attempt)
	if err != nil {
		return nil, err
	}

	graded, err := decodeGradedMap(attempt.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to decode graded answers: %w", err)
	}

	return &AttemptResultResponse{
		Attempt:    attempt,
		Results:    buildQuestionResults(questions, graded),
		Proctoring: suspiciousSummary(attempt.SuspiciousActivity),
	}, nil
}

// ===== MONITORING LIST =====

func (s *attemptService) ListByAssignment(ctx context.Context, assignmentID uint, params models.ListAttemptsParams, userID string) (*models.PaginatedResponse, error) {
	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleTeacher && role != models.RoleAdmin {
		return nil, NewPermissionError(userID, assignmentID, "assignment", "list_attempts", "teacher or admin role required")
	}

	if verrs := s.validator.ValidateListParams(&params); verrs.HasErrors() {
		return nil, verrs
	}

	if _, err := s.repo.Assignment().GetByID(ctx, nil, assignmentID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	filters := filtersFromParams(params)
	attempts, total, err := s.repo.Attempt().ListByAssignment(ctx, nil, assignmentID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	totalPages := 0
	if filters.Limit > 0 {
		totalPages = int((total + int64(filters.Limit) - 1) / int64(filters.Limit))
	}

	return &models.PaginatedResponse{
		Content:       attempts,
		TotalElements: total,
		TotalPages:    totalPages,
		Size:          filters.Limit,
		Page:          params.Page,
	}, nil
}
