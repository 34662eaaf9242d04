package notes

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateStudentNote stores a new draft note owned by the requester.
func (service *Service) CreateStudentNote(ctx context.Context, requester UserID, input StudentNoteInput) (StudentNote, error) {
	if err := service.ready(opCreateStudentNote); err != nil {
		return StudentNote{}, err
	}
	if input.CourseID == "" {
		return StudentNote{}, ErrInvalidCourseID
	}

	noteID, err := service.idProvider.NewID()
	if err != nil {
		return StudentNote{}, service.fail(opCreateStudentNote, reasonIDFailed, err,
			zap.String(fieldUserID, requester.String()))
	}

	createdAt := service.now()
	note := StudentNote{
		ID:          noteID,
		UserID:      requester.String(),
		CourseID:    input.CourseID.String(),
		ChapterID:   optionalString(input.ChapterID),
		Title:       strings.TrimSpace(input.Title),
		Content:     input.Content,
		RichContent: input.RichContent,
		Status:      NoteStatusDraft,
		IsDraft:     true,
		LastSaved:   createdAt,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if err := service.db.WithContext(ctx).Create(&note).Error; err != nil {
		return StudentNote{}, service.fail(opCreateStudentNote, reasonInsertFailed, err,
			zap.String(fieldUserID, requester.String()),
			zap.String(fieldNoteID, noteID))
	}
	return note, nil
}

// GetStudentNote returns the note when the requester owns it.
func (service *Service) GetStudentNote(ctx context.Context, requester UserID, noteID NoteID) (StudentNote, error) {
	if err := service.ready(opGetStudentNote); err != nil {
		return StudentNote{}, err
	}
	return service.loadOwned(ctx, opGetStudentNote, requester, noteID)
}

// ListStudentNotes returns the requester's notes, most recently saved first.
func (service *Service) ListStudentNotes(ctx context.Context, requester UserID, filter StudentNoteFilter) ([]StudentNote, error) {
	if err := service.ready(opListStudentNotes); err != nil {
		return nil, err
	}

	query := service.db.WithContext(ctx).Where(fieldUserID+" = ?", requester.String())
	if filter.CourseID != "" {
		query = query.Where(fieldCourseID+" = ?", filter.CourseID.String())
	}
	if chapterID := strings.TrimSpace(filter.ChapterID); chapterID != "" {
		query = query.Where("chapter_id = ?", chapterID)
	}
	if filter.BookmarkedOnly {
		query = query.Where("is_bookmarked = ?", true)
	}

	var stored []StudentNote
	if err := query.Order("last_saved DESC").Find(&stored).Error; err != nil {
		return nil, service.fail(opListStudentNotes, reasonQueryFailed, err,
			zap.String(fieldUserID, requester.String()))
	}
	return stored, nil
}

// SaveDraft applies an auto-save patch. The note is looked up by id and owner
// on every call, and the whole row is rewritten, so concurrent saves resolve
// last-write-wins.
func (service *Service) SaveDraft(ctx context.Context, requester UserID, noteID NoteID, patch DraftPatch) (StudentNote, error) {
	if err := service.ready(opSaveDraft); err != nil {
		return StudentNote{}, err
	}

	existing, err := service.loadOwned(ctx, opSaveDraft, requester, noteID)
	if err != nil {
		return StudentNote{}, err
	}

	updated := applyDraft(existing, patch, service.now())
	if err := service.writeOwned(ctx, opSaveDraft, requester, noteID, map[string]any{
		"title":        updated.Title,
		"content":      updated.Content,
		"rich_content": updated.RichContent,
		"status":       updated.Status,
		"is_draft":     updated.IsDraft,
		"last_saved":   updated.LastSaved,
		"updated_at":   updated.UpdatedAt,
	}); err != nil {
		return StudentNote{}, err
	}
	return updated, nil
}

// ToggleBookmark sets the bookmark flag to the supplied value.
func (service *Service) ToggleBookmark(ctx context.Context, requester UserID, noteID NoteID, isBookmarked bool) (StudentNote, error) {
	if err := service.ready(opToggleBookmark); err != nil {
		return StudentNote{}, err
	}

	existing, err := service.loadOwned(ctx, opToggleBookmark, requester, noteID)
	if err != nil {
		return StudentNote{}, err
	}

	updated := existing
	updated.IsBookmarked = isBookmarked
	updated.UpdatedAt = service.now()
	if err := service.writeOwned(ctx, opToggleBookmark, requester, noteID, map[string]any{
		"is_bookmarked": updated.IsBookmarked,
		"updated_at":    updated.UpdatedAt,
	}); err != nil {
		return StudentNote{}, err
	}
	return updated, nil
}

// PublishStudentNote moves the note to PUBLISHED. A later SaveDraft returns it to DRAFT.
func (service *Service) PublishStudentNote(ctx context.Context, requester UserID, noteID NoteID) (StudentNote, error) {
	if err := service.ready(opPublishStudentNote); err != nil {
		return StudentNote{}, err
	}

	existing, err := service.loadOwned(ctx, opPublishStudentNote, requester, noteID)
	if err != nil {
		return StudentNote{}, err
	}

	updated := applyPublish(existing, service.now())
	if err := service.writeOwned(ctx, opPublishStudentNote, requester, noteID, map[string]any{
		"status":     updated.Status,
		"is_draft":   updated.IsDraft,
		"updated_at": updated.UpdatedAt,
	}); err != nil {
		return StudentNote{}, err
	}
	return updated, nil
}

// DeleteStudentNote removes the requester's note.
func (service *Service) DeleteStudentNote(ctx context.Context, requester UserID, noteID NoteID) error {
	if err := service.ready(opDeleteStudentNote); err != nil {
		return err
	}

	result := service.db.WithContext(ctx).
		Where(queryNoteOwner, noteID.String(), requester.String()).
		Delete(&StudentNote{})
	if result.Error != nil {
		return service.fail(opDeleteStudentNote, reasonDeleteFailed, result.Error,
			zap.String(fieldUserID, requester.String()),
			zap.String(fieldNoteID, noteID.String()))
	}
	if result.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// loadOwned filters by id and owner together so other users' notes are
// indistinguishable from missing ones.
func (service *Service) loadOwned(ctx context.Context, operation string, requester UserID, noteID NoteID) (StudentNote, error) {
	var note StudentNote
	err := service.db.WithContext(ctx).
		Where(queryNoteOwner, noteID.String(), requester.String()).
		Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return StudentNote{}, ErrNoteNotFound
	}
	if err != nil {
		return StudentNote{}, service.fail(operation, reasonLookupFailed, err,
			zap.String(fieldUserID, requester.String()),
			zap.String(fieldNoteID, noteID.String()))
	}
	return note, nil
}

// writeOwned issues a single UPDATE scoped by id and owner. A row deleted
// between the lookup and the write surfaces as ErrNoteNotFound.
func (service *Service) writeOwned(ctx context.Context, operation string, requester UserID, noteID NoteID, columns map[string]any) error {
	result := service.db.WithContext(ctx).
		Model(&StudentNote{}).
		Where(queryNoteOwner, noteID.String(), requester.String()).
		Updates(columns)
	if result.Error != nil {
		return service.fail(operation, reasonUpdateFailed, result.Error,
			zap.String(fieldUserID, requester.String()),
			zap.String(fieldNoteID, noteID.String()))
	}
	if result.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}
