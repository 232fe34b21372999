package services

import (
	"encoding/json"
	"log/slog"

	"github.com/edtestlab/exam-engine/internal/models"
)

// gradingService scores submissions. Scoring is strictly binary: a question
// is either fully correct and earns its marks, or earns zero. It keeps no
// state and touches no storage.
type gradingService struct {
	logger *slog.Logger
}

func NewGradingService(logger *slog.Logger) GradingService {
	return &gradingService{logger: logger}
}

func (s *gradingService) IsCorrect(questionType models.QuestionType, correctAnswer, submitted json.RawMessage) bool {
	if len(submitted) == 0 || len(correctAnswer) == 0 {
		return false
	}

	switch questionType {
	case models.SingleChoice:
		return gradeScalar(correctAnswer, submitted)
	case models.MultipleChoice:
		return gradeSet(correctAnswer, submitted)
	case models.TrueFalse:
		return gradeTrueFalse(correctAnswer, submitted)
	case models.ShortAnswer:
		return gradeAnyOf(correctAnswer, submitted)
	case models.Ordering:
		return gradeSequence(correctAnswer, submitted)
	case models.Matching:
		return gradeMatching(correctAnswer, submitted)
	case models.FillBlanks:
		return gradeFillBlanks(correctAnswer, submitted)
	case models.ImageBased:
		return gradeImageBased(correctAnswer, submitted)
	default:
		s.logger.Warn("Unknown question type, scoring as incorrect", "question_type", questionType)
		return false
	}
}

// GradeAttempt grades every question of the set against the answer map
// (keys are decimal question ids). Missing or malformed answers score zero;
// nothing aborts the aggregate.
func (s *gradingService) GradeAttempt(questions []*models.Question, answers map[string]json.RawMessage) *AttemptGrade {
	grade := &AttemptGrade{
		Graded: make(map[string]models.GradedAnswer, len(questions)),
	}

	for _, q := range questions {
		key := questionKey(q.ID)
		submitted := answers[key]

		correct := s.IsCorrect(q.QuestionType, json.RawMessage(q.CorrectAnswer), submitted)

		earned := 0.0
		if correct {
			earned = q.Marks
		}
		grade.Score += earned

		grade.Graded[key] = models.GradedAnswer{
			Answer:      submitted,
			IsCorrect:   correct,
			EarnedMarks: earned,
		}
	}

	return grade
}
