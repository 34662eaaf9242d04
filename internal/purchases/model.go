package purchases

import (
	"errors"
	"time"
)

var (
	// ErrCourseNotFound indicates the course is not part of the catalogue.
	ErrCourseNotFound = errors.New("purchases: course not found")
	// ErrInvalidCourse indicates a course definition failed validation.
	ErrInvalidCourse = errors.New("purchases: invalid course")
	// ErrInvalidIdentifier indicates an empty user or course identifier.
	ErrInvalidIdentifier = errors.New("purchases: invalid identifier")
)

// Course is a catalogue entry that can be purchased.
type Course struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Title       string    `gorm:"column:title;size:512;not null" json:"title"`
	PriceCents  int64     `gorm:"column:price_cents;not null" json:"priceCents"`
	IsPublished bool      `gorm:"column:is_published;not null" json:"isPublished"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Course) TableName() string {
	return "courses"
}

// Purchase records that a user unlocked a course. At most one row exists per
// (user, course) pair.
type Purchase struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	UserID    string    `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_purchases_user_course,priority:1" json:"userId"`
	CourseID  string    `gorm:"column:course_id;size:190;not null;uniqueIndex:idx_purchases_user_course,priority:2;index" json:"courseId"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (Purchase) TableName() string {
	return "purchases"
}

// CourseInput describes a catalogue entry to create or refresh.
type CourseInput struct {
	ID          string
	Title       string
	PriceCents  int64
	IsPublished bool
}

// CompletionResult reports the purchase row and whether this call created it.
type CompletionResult struct {
	Purchase Purchase
	Created  bool
}
