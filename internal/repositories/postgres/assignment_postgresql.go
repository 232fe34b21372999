package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/edtestlab/exam-engine/internal/cache"
	"github.com/edtestlab/exam-engine/internal/models"
	"github.com/edtestlab/exam-engine/internal/repositories"
)

type AssignmentPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAssignmentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AssignmentRepository {
	return &AssignmentPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AssignmentPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assignment, error) {
	db := a.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var assignment models.Assignment

	err := a.cacheManager.Assignment.CacheOrExecute(ctx, cacheKey, &assignment, cache.AssignmentCacheConfig.TTL, func() (interface{}, error) {
		var dbAssignment models.Assignment
		if err := db.WithContext(ctx).First(&dbAssignment, id).Error; err != nil {
			return nil, err
		}
		return &dbAssignment, nil
	})
	if err != nil {
		return nil, err
	}

	return &assignment, nil
}

func (a *AssignmentPostgreSQL) GetWithTest(ctx context.Context, tx *gorm.DB, id uint) (*models.Assignment, error) {
	db := a.getDB(tx)
	var assignment models.Assignment
	if err := db.WithContext(ctx).
		Preload("Test").
		First(&assignment, id).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (a *AssignmentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// ===== MEMBERSHIP REPOSITORY IMPLEMENTATION =====

type MembershipPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewMembershipPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.MembershipRepository {
	return &MembershipPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// IsActiveMember checks class enrollment with a short-lived cache; the
// membership table is written by the class-admin surface, not by us.
func (m *MembershipPostgreSQL) IsActiveMember(ctx context.Context, tx *gorm.DB, classID uint, studentID string) (bool, error) {
	db := m.getDB(tx)
	cacheKey := fmt.Sprintf("member:%d:%s", classID, studentID)

	cached, err := m.cacheManager.Exists.GetString(ctx, cacheKey)
	if err == nil {
		return cached == "true", nil
	}

	var count int64
	if err := db.WithContext(ctx).
		Model(&models.ClassMembership{}).
		Where("class_id = ? AND student_id = ? AND is_active = true", classID, studentID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check class membership: %w", err)
	}

	isMember := count > 0
	m.cacheManager.Exists.SetString(ctx, cacheKey, fmt.Sprintf("%t", isMember), cache.ExistsCacheConfig.TTL)

	return isMember, nil
}

func (m *MembershipPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return m.db
}
