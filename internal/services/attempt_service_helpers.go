package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/edtestlab/exam-engine/internal/events"
	"github.com/edtestlab/exam-engine/internal/models"
	"github.com/edtestlab/exam-engine/internal/repositories"
	"github.com/edtestlab/exam-engine/internal/shuffle"
)

const defaultPageSize = 20

// ===== ELIGIBILITY =====

// checkEligibility enforces the start-time rules: active class membership,
// an active and published assignment, and an open window. The window gates
// start only; a running attempt may be submitted after EndDate.
func (s *attemptService) checkEligibility(ctx context.Context, assignment *models.Assignment, studentID string) error {
	member, err := s.repo.Membership().IsActiveMember(ctx, nil, assignment.ClassID, studentID)
	if err != nil {
		return fmt.Errorf("failed to check class membership: %w", err)
	}
	if !member {
		return ErrNotClassMember
	}

	if !assignment.IsActive || !assignment.Test.IsPublished {
		return ErrAssignmentInactive
	}

	now := time.Now()
	if now.Before(assignment.StartDate) {
		return ErrAssignmentNotStarted
	}
	if !now.Before(assignment.EndDate) {
		return ErrAssignmentEnded
	}

	return nil
}

// getOwnedAttempt loads an attempt and hides other students' rows behind
// not-found.
func (s *attemptService) getOwnedAttempt(ctx context.Context, id uint, studentID string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *attemptService) getUserRole(ctx context.Context, userID string) (models.UserRole, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	return user.Role, nil
}

// ===== QUESTION SETS =====

// questionSet loads a test's questions and applies the per-attempt
// permutation when shuffling is on. The permutation is derived from the
// attempt id alone, so every read of the same attempt sees the same order.
func (s *attemptService) questionSet(ctx context.Context, testID uint, shuffleOn bool, attemptID uint) ([]*models.Question, error) {
	questions, err := s.repo.Question().GetByTest(ctx, nil, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	if shuffleOn {
		questions = shuffle.Apply(questions, questionKey(attemptID))
	}
	return questions, nil
}

func (s *attemptService) questionsForAttempt(ctx context.Context, attempt *models.Attempt) ([]*models.Question, error) {
	assignment, err := s.repo.Assignment().GetWithTest(ctx, nil, attempt.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return s.questionSet(ctx, assignment.TestID, assignment.Test.ShuffleQuestions, attempt.ID)
}

func (s *attemptService) buildStartResponse(ctx context.Context, attempt *models.Attempt, test *models.Test, resumed bool) (*StartAttemptResponse, error) {
	questions, err := s.questionSet(ctx, test.ID, test.ShuffleQuestions, attempt.ID)
	if err != nil {
		return nil, err
	}

	return &StartAttemptResponse{
		AttemptID:       attempt.ID,
		StartedAt:       attempt.StartedAt,
		DurationMinutes: test.DurationMinutes,
		Resumed:         resumed,
		Questions:       buildQuestionViews(questions, false),
	}, nil
}

// buildQuestionViews projects questions for delivery. Correct answers are
// included only once the attempt is completed.
func buildQuestionViews(questions []*models.Question, revealAnswers bool) []models.QuestionView {
	views := make([]models.QuestionView, 0, len(questions))
	for _, q := range questions {
		view := models.QuestionView{
			ID:           q.ID,
			QuestionType: q.QuestionType,
			QuestionText: q.QuestionText,
			Options:      json.RawMessage(q.Options),
			Marks:        q.Marks,
			MediaURL:     q.MediaURL,
		}
		if revealAnswers {
			view.CorrectAnswer = json.RawMessage(q.CorrectAnswer)
		}
		views = append(views, view)
	}
	return views
}

func buildQuestionResults(questions []*models.Question, graded map[string]models.GradedAnswer) []models.QuestionResult {
	results := make([]models.QuestionResult, 0, len(questions))
	for _, q := range questions {
		g := graded[questionKey(q.ID)]
		results = append(results, models.QuestionResult{
			QuestionID:    q.ID,
			QuestionText:  q.QuestionText,
			QuestionType:  q.QuestionType,
			StudentAnswer: g.Answer,
			CorrectAnswer: json.RawMessage(q.CorrectAnswer),
			IsCorrect:     g.IsCorrect,
			EarnedMarks:   g.EarnedMarks,
			Marks:         q.Marks,
		})
	}
	return results
}

// ===== PROGRESS / TELEMETRY =====

// progressUpdates builds the column map for a save: the full answer map plus
// coerced telemetry. Saves replace, they never merge.
func progressUpdates(req *AttemptProgressRequest) (map[string]interface{}, error) {
	answers := req.Answers
	if answers == nil {
		answers = map[string]json.RawMessage{}
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answers: %w", err)
	}

	updates := telemetryUpdates(req)
	updates["answers"] = answersJSON
	return updates, nil
}

func telemetryUpdates(req *AttemptProgressRequest) map[string]interface{} {
	return map[string]interface{}{
		"tab_switches":        coerceCounter(req.TabSwitches),
		"copy_attempts":       coerceCounter(req.CopyAttempts),
		"suspicious_activity": coerceActivity(req.SuspiciousActivity),
	}
}

// coerceCounter reads a non-negative integer out of the raw value; anything
// else counts as zero. Telemetry is advisory, garbage must not fail a save.
func coerceCounter(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil || n < 0 {
		return 0
	}
	return n
}

// coerceActivity keeps the payload only if it is a JSON array.
func coerceActivity(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return emptyJSONArray()
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return emptyJSONArray()
	}
	return raw
}

// suspiciousSummary counts recorded proctoring events by type. Records that
// do not carry a type are skipped; a summary is omitted when nothing counted.
func suspiciousSummary(raw datatypes.JSON) map[models.ProctoringEventType]int {
	var recorded []models.SuspiciousEvent
	if err := json.Unmarshal(raw, &recorded); err != nil {
		return nil
	}
	summary := map[models.ProctoringEventType]int{}
	for _, e := range recorded {
		if e.Type == "" {
			continue
		}
		summary[e.Type]++
	}
	if len(summary) == 0 {
		return nil
	}
	return summary
}

func emptyJSONObject() datatypes.JSON {
	return datatypes.JSON("{}")
}

func emptyJSONArray() datatypes.JSON {
	return datatypes.JSON("[]")
}

func decodeAnswerMap(raw datatypes.JSON) (map[string]json.RawMessage, error) {
	answers := map[string]json.RawMessage{}
	if len(raw) == 0 {
		return answers, nil
	}
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func decodeGradedMap(raw datatypes.JSON) (map[string]models.GradedAnswer, error) {
	graded := map[string]models.GradedAnswer{}
	if len(raw) == 0 {
		return graded, nil
	}
	if err := json.Unmarshal(raw, &graded); err != nil {
		return nil, err
	}
	return graded, nil
}

// ===== EVENTS =====

// publishSubmitted emits the attempt.submitted event. Best-effort: failures
// are logged and never surfaced to the student.
func (s *attemptService) publishSubmitted(attempt *models.Attempt, score, percentage float64, passed bool, submittedAt time.Time) {
	if s.publisher == nil {
		return
	}

	payload := events.AttemptSubmittedPayload{
		AttemptID:    attempt.ID,
		AssignmentID: attempt.AssignmentID,
		StudentID:    attempt.StudentID,
		Score:        score,
		MaxScore:     attempt.MaxScore,
		Percentage:   percentage,
		Passed:       passed,
		SubmittedAt:  submittedAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, events.TopicAttemptSubmitted, payload); err != nil {
		s.logger.Error("Failed to publish attempt.submitted event",
			"attempt_id", attempt.ID,
			"error", err)
	}
}

// ===== LIST FILTERS =====

func filtersFromParams(params models.ListAttemptsParams) repositories.AttemptFilters {
	size := params.Size
	if size <= 0 {
		size = defaultPageSize
	}
	page := params.Page
	if page < 0 {
		page = 0
	}

	return repositories.AttemptFilters{
		StudentID: params.StudentID,
		Completed: params.Completed,
		Limit:     size,
		Offset:    page * size,
		SortBy:    params.SortBy,
		SortOrder: params.SortDir,
	}
}
