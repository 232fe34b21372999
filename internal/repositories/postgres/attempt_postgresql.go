package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/edtestlab/exam-engine/internal/models"
	"github.com/edtestlab/exam-engine/internal/repositories"
)

// AttemptPostgreSQL implements AttemptRepository. Attempt rows are never
// cached: saves and submits need read-your-writes semantics.
type AttemptPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewAttemptPostgreSQL(db *gorm.DB, _ *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetOpenAttempt(ctx context.Context, tx *gorm.DB, assignmentID uint, studentID string) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ? AND is_completed = false", assignmentID, studentID).
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountForAssignment(ctx context.Context, tx *gorm.DB, assignmentID uint, studentID string) (int64, error) {
	if tx != nil {
		var count int64
		err := tx.WithContext(ctx).
			Model(&models.Attempt{}).
			Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
			Count(&count).Error
		return count, err
	}
	return a.helpers.CountAttemptsForAssignment(ctx, assignmentID, studentID)
}

// SaveProgress writes answers and telemetry onto an open attempt only. The
// WHERE is_completed = false clause is the immutability guard: once a row is
// completed no save can touch it, and the caller learns that from the zero
// row count.
func (a *AttemptPostgreSQL) SaveProgress(ctx context.Context, tx *gorm.DB, id uint, updates map[string]interface{}) (int64, error) {
	db := a.getDB(tx)
	result := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND is_completed = false", id).
		Updates(updates)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to save attempt progress: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Finalize flips is_completed in the same conditional update that writes the
// graded result, so two racing submits cannot both succeed.
func (a *AttemptPostgreSQL) Finalize(ctx context.Context, tx *gorm.DB, id uint, updates map[string]interface{}) (int64, error) {
	db := a.getDB(tx)
	updates["is_completed"] = true
	result := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND is_completed = false", id).
		Updates(updates)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to finalize attempt: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (a *AttemptPostgreSQL) ListByAssignment(ctx context.Context, tx *gorm.DB, assignmentID uint, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt
	var total int64

	query := db.WithContext(ctx).Model(&models.Attempt{}).Where("assignment_id = ?", assignmentID)
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}
