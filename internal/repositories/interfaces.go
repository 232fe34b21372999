package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/edtestlab/exam-engine/internal/models"
)

// ===== FILTERS =====

type AttemptFilters struct {
	StudentID *string    `json:"student_id"`
	Completed *bool      `json:"completed"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`    // "created_at", "started_at", "score"
	SortOrder string     `json:"sort_order"` // "asc", "desc"
}

// ===== DOMAIN REPOSITORIES =====

// All read methods accept an optional transaction; pass nil to use the
// default connection.

type TestRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Test, error)
	GetWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Test, error)
}

type QuestionRepository interface {
	// GetByTest returns the test's questions in base order
	// (order_number, then id).
	GetByTest(ctx context.Context, tx *gorm.DB, testID uint) ([]*models.Question, error)
	SumMarks(ctx context.Context, tx *gorm.DB, testID uint) (float64, error)
}

type AssignmentRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assignment, error)
	GetWithTest(ctx context.Context, tx *gorm.DB, id uint) (*models.Assignment, error)
}

type MembershipRepository interface {
	IsActiveMember(ctx context.Context, tx *gorm.DB, classID uint, studentID string) (bool, error)
}

type AttemptRepository interface {
	// Create inserts a fresh attempt. A concurrent duplicate open attempt
	// surfaces as a duplicate-key error via the partial unique index.
	Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error

	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	GetOpenAttempt(ctx context.Context, tx *gorm.DB, assignmentID uint, studentID string) (*models.Attempt, error)
	CountForAssignment(ctx context.Context, tx *gorm.DB, assignmentID uint, studentID string) (int64, error)

	// SaveProgress and Finalize update only open rows
	// (is_completed = false) and report how many rows matched. Zero means
	// the attempt was already completed or does not exist.
	SaveProgress(ctx context.Context, tx *gorm.DB, id uint, updates map[string]interface{}) (int64, error)
	Finalize(ctx context.Context, tx *gorm.DB, id uint, updates map[string]interface{}) (int64, error)

	ListByAssignment(ctx context.Context, tx *gorm.DB, assignmentID uint, filters AttemptFilters) ([]*models.Attempt, int64, error)
}

// UserRepository reads identity data from the auth provider.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	HasRole(ctx context.Context, id string, role models.UserRole) (bool, error)
}
