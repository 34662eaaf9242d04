package notes

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError reports an unexpected storage failure with a stable code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the "<operation>.<reason>" identifier of the failure.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew          = "notes.service.new"
	opCreateStudentNote   = "notes.create_student_note"
	opGetStudentNote      = "notes.get_student_note"
	opListStudentNotes    = "notes.list_student_notes"
	opSaveDraft           = "notes.save_draft"
	opToggleBookmark      = "notes.toggle_bookmark"
	opPublishStudentNote  = "notes.publish_student_note"
	opDeleteStudentNote   = "notes.delete_student_note"
	opCreateSharedNote    = "notes.create_shared_note"
	opGetSharedNote       = "notes.get_shared_note"
	opListSharedNotes     = "notes.list_shared_notes"
	opIncrementDownload   = "notes.increment_download"
	opDeleteSharedNote    = "notes.delete_shared_note"
	fieldUserID           = "user_id"
	fieldNoteID           = "note_id"
	fieldCourseID         = "course_id"
	queryNoteID           = "id = ?"
	queryNoteOwner        = "id = ? AND user_id = ?"
	queryNoteAuthor       = "id = ? AND author_id = ?"
	reasonMissingDatabase = "missing_database"
	reasonIDFailed        = "id_generation_failed"
	reasonInsertFailed    = "insert_failed"
	reasonLookupFailed    = "lookup_failed"
	reasonUpdateFailed    = "update_failed"
	reasonDeleteFailed    = "delete_failed"
	reasonQueryFailed     = "query_failed"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the notes service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// IDProvider issues identifiers for new notes.
type IDProvider interface {
	NewID() (string, error)
}

// Service implements the student note lifecycle and the shared note counters.
// It holds no note state between calls; every operation reads the row fresh.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

func (service *Service) ready(operation string) error {
	if service == nil || service.db == nil {
		service.logError(operation, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(operation, reasonMissingDatabase, errMissingDatabase)
	}
	return nil
}

func (service *Service) now() time.Time {
	return service.clock().UTC()
}

func (service *Service) loggerOrDefault() *zap.Logger {
	if service == nil {
		return noOpLogger
	}
	if service.logger == nil {
		return noOpLogger
	}
	return service.logger
}

func (service *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	service.loggerOrDefault().Error("notes service error", attrs...)
}

// fail logs and wraps an unexpected storage failure.
func (service *Service) fail(operation, reason string, err error, fields ...zap.Field) error {
	service.logError(operation, reason, err, fields...)
	return newServiceError(operation, reason, err)
}
