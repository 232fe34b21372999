package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository aggregates all domain repositories behind one handle.
type Repository interface {
	Test() TestRepository
	Question() QuestionRepository
	Assignment() AssignmentRepository
	Membership() MembershipRepository
	Attempt() AttemptRepository

	// User domain (read-only, backed by the auth provider)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager manages repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// IsNotFoundError reports whether err means the row does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateKeyError reports whether err is a unique-constraint violation.
// Requires the gorm connection to be opened with TranslateError.
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
