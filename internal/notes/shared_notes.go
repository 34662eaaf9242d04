package notes

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateSharedNote publishes a downloadable note authored by the requester.
func (service *Service) CreateSharedNote(ctx context.Context, author UserID, input SharedNoteInput) (SharedNote, error) {
	if err := service.ready(opCreateSharedNote); err != nil {
		return SharedNote{}, err
	}
	if input.CourseID == "" {
		return SharedNote{}, ErrInvalidCourseID
	}

	noteID, err := service.idProvider.NewID()
	if err != nil {
		return SharedNote{}, service.fail(opCreateSharedNote, reasonIDFailed, err,
			zap.String(fieldUserID, author.String()))
	}

	createdAt := service.now()
	note := SharedNote{
		ID:        noteID,
		AuthorID:  author.String(),
		CourseID:  input.CourseID.String(),
		ChapterID: optionalString(input.ChapterID),
		Title:     strings.TrimSpace(input.Title),
		Content:   input.Content,
		FileURL:   strings.TrimSpace(input.FileURL),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := service.db.WithContext(ctx).Create(&note).Error; err != nil {
		return SharedNote{}, service.fail(opCreateSharedNote, reasonInsertFailed, err,
			zap.String(fieldUserID, author.String()),
			zap.String(fieldNoteID, noteID))
	}
	return note, nil
}

// GetSharedNote returns a shared note by id.
func (service *Service) GetSharedNote(ctx context.Context, noteID NoteID) (SharedNote, error) {
	if err := service.ready(opGetSharedNote); err != nil {
		return SharedNote{}, err
	}
	return service.loadShared(ctx, service.db, opGetSharedNote, noteID)
}

// ListSharedNotes returns the shared notes of a course, newest first.
func (service *Service) ListSharedNotes(ctx context.Context, courseID CourseID) ([]SharedNote, error) {
	if err := service.ready(opListSharedNotes); err != nil {
		return nil, err
	}

	var stored []SharedNote
	if err := service.db.WithContext(ctx).
		Where(fieldCourseID+" = ?", courseID.String()).
		Order("created_at DESC").
		Find(&stored).Error; err != nil {
		return nil, service.fail(opListSharedNotes, reasonQueryFailed, err,
			zap.String(fieldCourseID, courseID.String()))
	}
	return stored, nil
}

// IncrementDownload bumps the download counter and returns the note as it
// stands after the increment. Any requester may trigger it.
func (service *Service) IncrementDownload(ctx context.Context, noteID NoteID) (SharedNote, error) {
	if err := service.ready(opIncrementDownload); err != nil {
		return SharedNote{}, err
	}

	var updated SharedNote
	err := service.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		// The increment is evaluated by the store so concurrent downloads never
		// overwrite each other's counts.
		result := transaction.Model(&SharedNote{}).
			Where(queryNoteID, noteID.String()).
			Updates(map[string]any{
				"downloads":  gorm.Expr("downloads + ?", 1),
				"updated_at": service.now(),
			})
		if result.Error != nil {
			return service.fail(opIncrementDownload, reasonUpdateFailed, result.Error,
				zap.String(fieldNoteID, noteID.String()))
		}
		if result.RowsAffected == 0 {
			return ErrNoteNotFound
		}

		reloaded, err := service.loadShared(ctx, transaction, opIncrementDownload, noteID)
		if err != nil {
			return err
		}
		updated = reloaded
		return nil
	})
	if err != nil {
		return SharedNote{}, err
	}
	return updated, nil
}

// DeleteSharedNote removes a shared note. Only its author may delete it;
// everyone else sees ErrNoteNotFound, matching the student note policy.
func (service *Service) DeleteSharedNote(ctx context.Context, requester UserID, noteID NoteID) error {
	if err := service.ready(opDeleteSharedNote); err != nil {
		return err
	}

	result := service.db.WithContext(ctx).
		Where(queryNoteAuthor, noteID.String(), requester.String()).
		Delete(&SharedNote{})
	if result.Error != nil {
		return service.fail(opDeleteSharedNote, reasonDeleteFailed, result.Error,
			zap.String(fieldUserID, requester.String()),
			zap.String(fieldNoteID, noteID.String()))
	}
	if result.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

func (service *Service) loadShared(ctx context.Context, database *gorm.DB, operation string, noteID NoteID) (SharedNote, error) {
	var note SharedNote
	err := database.WithContext(ctx).Where(queryNoteID, noteID.String()).Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SharedNote{}, ErrNoteNotFound
	}
	if err != nil {
		return SharedNote{}, service.fail(operation, reasonLookupFailed, err,
			zap.String(fieldNoteID, noteID.String()))
	}
	return note, nil
}
