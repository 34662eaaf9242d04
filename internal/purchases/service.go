package purchases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
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
	opServiceNew       = "purchases.service.new"
	opCompletePurchase = "purchases.complete_purchase"
	opHasPurchase      = "purchases.has_purchase"
	opListPurchases    = "purchases.list_purchases"
	opUpsertCourse     = "purchases.upsert_course"
	opGetCourse        = "purchases.get_course"
	queryUserCourse    = "user_id = ? AND course_id = ?"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: operation + "." + reason, err: cause}
}

// IDProvider issues purchase identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the purchase service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service finalizes checkouts and answers course access questions.
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
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CompletePurchase records that userID bought courseID. Repeated calls for
// the same pair return the original row with Created=false; the unique index
// on (user_id, course_id) makes concurrent duplicates collapse into one row.
func (service *Service) CompletePurchase(ctx context.Context, userID, courseID string) (CompletionResult, error) {
	if service == nil || service.db == nil {
		return CompletionResult{}, newServiceError(opCompletePurchase, "missing_database", errMissingDatabase)
	}
	userID = strings.TrimSpace(userID)
	courseID = strings.TrimSpace(courseID)
	if userID == "" || courseID == "" {
		return CompletionResult{}, ErrInvalidIdentifier
	}

	var result CompletionResult
	transactionError := service.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var course Course
		err := transaction.Select("id").Where("id = ?", courseID).Take(&course).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		if err != nil {
			return service.fail(opCompletePurchase, "course_lookup_failed", err, userID, courseID)
		}

		purchaseID, err := service.idProvider.NewID()
		if err != nil {
			return service.fail(opCompletePurchase, "id_generation_failed", err, userID, courseID)
		}
		candidate := Purchase{
			ID:        purchaseID,
			UserID:    userID,
			CourseID:  courseID,
			CreatedAt: service.clock().UTC(),
		}
		createResult := transaction.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate)
		if createResult.Error != nil {
			return service.fail(opCompletePurchase, "purchase_insert_failed", createResult.Error, userID, courseID)
		}
		if createResult.RowsAffected > 0 {
			result = CompletionResult{Purchase: candidate, Created: true}
			return nil
		}

		var existing Purchase
		if err := transaction.Where(queryUserCourse, userID, courseID).Take(&existing).Error; err != nil {
			return service.fail(opCompletePurchase, "purchase_lookup_failed", err, userID, courseID)
		}
		result = CompletionResult{Purchase: existing, Created: false}
		return nil
	})
	if transactionError != nil {
		return CompletionResult{}, transactionError
	}

	if result.Created {
		service.logger.Info("purchase completed",
			zap.String("user_id", userID),
			zap.String("course_id", courseID),
			zap.String("purchase_id", result.Purchase.ID))
	} else {
		service.logger.Debug("purchase already completed",
			zap.String("user_id", userID),
			zap.String("course_id", courseID))
	}
	return result, nil
}

// HasPurchase reports whether userID owns courseID.
func (service *Service) HasPurchase(ctx context.Context, userID, courseID string) (bool, error) {
	if service == nil || service.db == nil {
		return false, newServiceError(opHasPurchase, "missing_database", errMissingDatabase)
	}
	var count int64
	if err := service.db.WithContext(ctx).
		Model(&Purchase{}).
		Where(queryUserCourse, strings.TrimSpace(userID), strings.TrimSpace(courseID)).
		Count(&count).Error; err != nil {
		return false, service.fail(opHasPurchase, "query_failed", err, userID, courseID)
	}
	return count > 0, nil
}

// ListPurchases returns the purchases of a user, oldest first.
func (service *Service) ListPurchases(ctx context.Context, userID string) ([]Purchase, error) {
	if service == nil || service.db == nil {
		return nil, newServiceError(opListPurchases, "missing_database", errMissingDatabase)
	}
	var stored []Purchase
	if err := service.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at ASC").
		Find(&stored).Error; err != nil {
		return nil, service.fail(opListPurchases, "query_failed", err, userID, "")
	}
	return stored, nil
}

// UpsertCourse creates a catalogue entry or refreshes an existing one.
func (service *Service) UpsertCourse(ctx context.Context, input CourseInput) (Course, error) {
	if service == nil || service.db == nil {
		return Course{}, newServiceError(opUpsertCourse, "missing_database", errMissingDatabase)
	}
	courseID := strings.TrimSpace(input.ID)
	title := strings.TrimSpace(input.Title)
	if courseID == "" {
		return Course{}, fmt.Errorf("%w: empty id", ErrInvalidCourse)
	}
	if title == "" {
		return Course{}, fmt.Errorf("%w: empty title", ErrInvalidCourse)
	}
	if input.PriceCents < 0 {
		return Course{}, fmt.Errorf("%w: negative price", ErrInvalidCourse)
	}

	now := service.clock().UTC()
	course := Course{
		ID:          courseID,
		Title:       title,
		PriceCents:  input.PriceCents,
		IsPublished: input.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := service.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "price_cents", "is_published", "updated_at"}),
	}).Create(&course).Error
	if err != nil {
		return Course{}, service.fail(opUpsertCourse, "upsert_failed", err, "", courseID)
	}
	return service.GetCourse(ctx, courseID)
}

// GetCourse returns a catalogue entry by id.
func (service *Service) GetCourse(ctx context.Context, courseID string) (Course, error) {
	if service == nil || service.db == nil {
		return Course{}, newServiceError(opGetCourse, "missing_database", errMissingDatabase)
	}
	var course Course
	err := service.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(courseID)).Take(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Course{}, ErrCourseNotFound
	}
	if err != nil {
		return Course{}, service.fail(opGetCourse, "query_failed", err, "", courseID)
	}
	return course, nil
}

func (service *Service) fail(operation, reason string, err error, userID, courseID string) error {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	if userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	if courseID != "" {
		fields = append(fields, zap.String("course_id", courseID))
	}
	service.logger.Error("purchases service error", fields...)
	return newServiceError(operation, reason, err)
}
