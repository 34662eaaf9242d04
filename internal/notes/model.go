package notes

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// NoteStatus enumerates the publication states of a student note.
type NoteStatus string

const (
	// NoteStatusDraft marks a note that is still being auto-saved.
	NoteStatusDraft NoteStatus = "DRAFT"
	// NoteStatusPublished marks a note the owner has published.
	NoteStatusPublished NoteStatus = "PUBLISHED"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidNoteID indicates that a note identifier is empty or exceeds storage bounds.
	ErrInvalidNoteID = errors.New("notes: invalid note id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("notes: invalid user id")
	// ErrInvalidCourseID indicates that a course identifier is empty or exceeds storage bounds.
	ErrInvalidCourseID = errors.New("notes: invalid course id")
	// ErrNoteNotFound indicates the note does not exist or is not owned by the requester.
	ErrNoteNotFound = errors.New("notes: note not found")
)

// NoteID represents a validated note identifier.
type NoteID string

// NewNoteID validates raw input and returns a NoteID.
func NewNoteID(rawInput string) (NoteID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidNoteID)
	return NoteID(trimmed), err
}

// String returns the underlying string identifier.
func (id NoteID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidUserID)
	return UserID(trimmed), err
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// CourseID represents a validated course identifier.
type CourseID string

// NewCourseID validates raw input and returns a CourseID.
func NewCourseID(rawInput string) (CourseID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidCourseID)
	return CourseID(trimmed), err
}

// String returns the underlying string identifier.
func (id CourseID) String() string {
	return string(id)
}

func validateIdentifier(rawInput string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", sentinel)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", sentinel, maxIdentifierLength)
	}
	return trimmed, nil
}

// StudentNote is a private note owned by exactly one user.
// Status and IsDraft always move together.
type StudentNote struct {
	ID           string     `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	UserID       string     `gorm:"column:user_id;size:190;not null;index:idx_student_notes_owner_course,priority:1" json:"userId"`
	CourseID     string     `gorm:"column:course_id;size:190;not null;index:idx_student_notes_owner_course,priority:2" json:"courseId"`
	ChapterID    *string    `gorm:"column:chapter_id;size:190" json:"chapterId"`
	Title        string     `gorm:"column:title;size:512;not null" json:"title"`
	Content      string     `gorm:"column:content;type:text;not null" json:"content"`
	RichContent  string     `gorm:"column:rich_content;type:text;not null" json:"richContent"`
	Status       NoteStatus `gorm:"column:status;size:16;not null" json:"status"`
	IsDraft      bool       `gorm:"column:is_draft;not null" json:"isDraft"`
	IsBookmarked bool       `gorm:"column:is_bookmarked;not null" json:"isBookmarked"`
	LastSaved    time.Time  `gorm:"column:last_saved;not null" json:"lastSaved"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (StudentNote) TableName() string {
	return "student_notes"
}

// SharedNote is a course note published for every learner to download.
type SharedNote struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	AuthorID  string    `gorm:"column:author_id;size:190;not null;index" json:"authorId"`
	CourseID  string    `gorm:"column:course_id;size:190;not null;index" json:"courseId"`
	ChapterID *string   `gorm:"column:chapter_id;size:190" json:"chapterId"`
	Title     string    `gorm:"column:title;size:512;not null" json:"title"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	FileURL   string    `gorm:"column:file_url;size:1024;not null" json:"fileUrl"`
	Downloads int64     `gorm:"column:downloads;not null;default:0" json:"downloads"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (SharedNote) TableName() string {
	return "shared_notes"
}

// DraftPatch carries the fields supplied by an auto-save request.
// An empty value means "keep the stored value".
type DraftPatch struct {
	Title       string
	Content     string
	RichContent string
}

// StudentNoteInput describes a new student note.
type StudentNoteInput struct {
	CourseID    CourseID
	ChapterID   string
	Title       string
	Content     string
	RichContent string
}

// StudentNoteFilter narrows ListStudentNotes results.
type StudentNoteFilter struct {
	CourseID       CourseID
	ChapterID      string
	BookmarkedOnly bool
}

// SharedNoteInput describes a new shared note.
type SharedNoteInput struct {
	CourseID  CourseID
	ChapterID string
	Title     string
	Content   string
	FileURL   string
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
