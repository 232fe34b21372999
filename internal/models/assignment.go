package models

import (
	"time"

	"gorm.io/gorm"
)

// Assignment binds one Test to one Class for a validity window
// [StartDate, EndDate). A test may be assigned to many classes with
// independent windows.
type Assignment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TestID    uint      `json:"test_id" gorm:"not null;index"`
	ClassID   uint      `json:"class_id" gorm:"not null;index"`
	StartDate time.Time `json:"start_date" gorm:"not null"`
	EndDate   time.Time `json:"end_date" gorm:"not null"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true;index"`

	AssignedBy string `json:"assigned_by" gorm:"size:255"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Test     Test      `json:"test,omitempty" gorm:"foreignKey:TestID"`
	Attempts []Attempt `json:"-" gorm:"foreignKey:AssignmentID"`
}

func (Assignment) TableName() string {
	return "assignments"
}

// WindowOpen reports whether now falls inside [StartDate, EndDate).
func (a *Assignment) WindowOpen(now time.Time) bool {
	return !now.Before(a.StartDate) && now.Before(a.EndDate)
}

// ClassMembership records student enrollment. Membership rows are managed by
// the class administration surface; the engine only reads them.
type ClassMembership struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ClassID   uint   `json:"class_id" gorm:"not null;index;uniqueIndex:idx_class_student"`
	StudentID string `json:"student_id" gorm:"not null;index;size:255;uniqueIndex:idx_class_student"`
	IsActive  bool   `json:"is_active" gorm:"not null;default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Student User `json:"-" gorm:"foreignKey:StudentID"`
}

func (ClassMembership) TableName() string {
	return "class_memberships"
}
