package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/lumen/backend/internal/notes"
	"github.com/gin-gonic/gin"
)

// richContentValue accepts either a JSON string or an arbitrary JSON document
// (editor state). Documents are stored as their compact JSON text.
type richContentValue struct {
	text string
}

func (r *richContentValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		r.text = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &r.text)
	}
	var compacted bytes.Buffer
	if err := json.Compact(&compacted, trimmed); err != nil {
		return err
	}
	r.text = compacted.String()
	return nil
}

type studentNoteCreatePayload struct {
	CourseID    string           `json:"courseId"`
	ChapterID   string           `json:"chapterId"`
	Title       string           `json:"title"`
	Content     string           `json:"content"`
	RichContent richContentValue `json:"richContent"`
}

type draftPayload struct {
	Title       string           `json:"title"`
	Content     string           `json:"content"`
	RichContent richContentValue `json:"richContent"`
}

type bookmarkPayload struct {
	IsBookmarked *bool `json:"isBookmarked"`
}

type sharedNoteCreatePayload struct {
	CourseID  string `json:"courseId"`
	ChapterID string `json:"chapterId"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	FileURL   string `json:"fileUrl"`
}

type studentNotesResponse struct {
	Notes []notes.StudentNote `json:"notes"`
}

type sharedNotesResponse struct {
	Notes []notes.SharedNote `json:"notes"`
}

func (h *httpHandler) handleCreateStudentNote(c *gin.Context) {
	userID, ok := h.requesterID(c)
	if !ok {
		return
	}
	var request studentNoteCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	courseID, err := notes.NewCourseID(request.CourseID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_course_id"})
		return
	}

	note, err := h.notesService.CreateStudentNote(c.Request.Context(), userID, notes.StudentNoteInput{
		CourseID:    courseID,
		ChapterID:   request.ChapterID,
		Title:       request.Title,
		Content:     request.Content,
		RichContent: request.RichContent.text,
	})
	if err != nil {
		h.respondNotesError(c, "failed to create student note", err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (h *httpHandler) handleListStudentNotes(c *gin.Context) {
	userID, ok := h.requesterID(c)
	if !ok {
		return
	}
	filter := notes.StudentNoteFilter{ChapterID: c.Query("chapterId")}
	if rawCourseID := c.Query("courseId"); rawCourseID != "" {
		courseID, err := notes.NewCourseID(rawCourseID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_course_id"})
			return
		}
		filter.CourseID = courseID
	}
	if rawBookmarked := c.Query("bookmarked"); rawBookmarked != "" {
		bookmarked, err := strconv.ParseBool(rawBookmarked)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		filter.BookmarkedOnly = bookmarked
	}

	stored, err := h.notesService.ListStudentNotes(c.Request.Context(), userID, filter)
	if err != nil {
		h.respondNotesError(c, "failed to list student notes", err)
		return
	}
	if stored == nil {
		stored = []notes.StudentNote{}
	}
	c.JSON(http.StatusOK, studentNotesResponse{Notes: stored})
}

func (h *httpHandler) handleGetStudentNote(c *gin.Context) {
	userID, noteID, ok := h.ownedNoteParams(c)
	if !ok {
		return
	}
	note, err := h.notesService.GetStudentNote(c.Request.Context(), userID, noteID)
	if err != nil {
		h.respondNotesError(c, "failed to load student note", err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handleSaveDraft(c *gin.Context) {
	userID, noteID, ok := h.ownedNoteParams(c)
	if !ok {
		return
	}
	var request draftPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	note, err := h.notesService.SaveDraft(c.Request.Context(), userID, noteID, notes.DraftPatch{
		Title:       request.Title,
		Content:     request.Content,
		RichContent: request.RichContent.text,
	})
	if err != nil {
		h.respondNotesError(c, "failed to save draft", err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handleToggleBookmark(c *gin.Context) {
	userID, noteID, ok := h.ownedNoteParams(c)
	if !ok {
		return
	}
	var request bookmarkPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.IsBookmarked == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	note, err := h.notesService.ToggleBookmark(c.Request.Context(), userID, noteID, *request.IsBookmarked)
	if err != nil {
		h.respondNotesError(c, "failed to toggle bookmark", err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handlePublishStudentNote(c *gin.Context) {
	userID, noteID, ok := h.ownedNoteParams(c)
	if !ok {
		return
	}
	note, err := h.notesService.PublishStudentNote(c.Request.Context(), userID, noteID)
	if err != nil {
		h.respondNotesError(c, "failed to publish student note", err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handleDeleteStudentNote(c *gin.Context) {
	userID, noteID, ok := h.ownedNoteParams(c)
	if !ok {
		return
	}
	if err := h.notesService.DeleteStudentNote(c.Request.Context(), userID, noteID); err != nil {
		h.respondNotesError(c, "failed to delete student note", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "note deleted"})
}

func (h *httpHandler) handleCreateSharedNote(c *gin.Context) {
	userID, ok := h.requesterID(c)
	if !ok {
		return
	}
	var request sharedNoteCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	courseID, err := notes.NewCourseID(request.CourseID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_course_id"})
		return
	}

	note, err := h.notesService.CreateSharedNote(c.Request.Context(), userID, notes.SharedNoteInput{
		CourseID:  courseID,
		ChapterID: request.ChapterID,
		Title:     request.Title,
		Content:   request.Content,
		FileURL:   request.FileURL,
	})
	if err != nil {
		h.respondNotesError(c, "failed to create shared note", err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (h *httpHandler) handleListSharedNotes(c *gin.Context) {
	courseID, err := notes.NewCourseID(c.Query("courseId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_course_id"})
		return
	}
	stored, err := h.notesService.ListSharedNotes(c.Request.Context(), courseID)
	if err != nil {
		h.respondNotesError(c, "failed to list shared notes", err)
		return
	}
	if stored == nil {
		stored = []notes.SharedNote{}
	}
	c.JSON(http.StatusOK, sharedNotesResponse{Notes: stored})
}

func (h *httpHandler) handleGetSharedNote(c *gin.Context) {
	noteID, ok := noteIDParam(c)
	if !ok {
		return
	}
	note, err := h.notesService.GetSharedNote(c.Request.Context(), noteID)
	if err != nil {
		h.respondNotesError(c, "failed to load shared note", err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handleIncrementDownload(c *gin.Context) {
	noteID, ok := noteIDParam(c)
	if !ok {
		return
	}
	note, err := h.notesService.IncrementDownload(c.Request.Context(), noteID)
	if err != nil {
		h.respondNotesError(c, "failed to record download", err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handleDeleteSharedNote(c *gin.Context) {
	userID, noteID, ok := h.ownedNoteParams(c)
	if !ok {
		return
	}
	if err := h.notesService.DeleteSharedNote(c.Request.Context(), userID, noteID); err != nil {
		h.respondNotesError(c, "failed to delete shared note", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "note deleted"})
}

func (h *httpHandler) requesterID(c *gin.Context) (notes.UserID, bool) {
	rawUserID, ok := h.requester(c)
	if !ok {
		return "", false
	}
	userID, err := notes.NewUserID(rawUserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}

func (h *httpHandler) ownedNoteParams(c *gin.Context) (notes.UserID, notes.NoteID, bool) {
	userID, ok := h.requesterID(c)
	if !ok {
		return "", "", false
	}
	noteID, ok := noteIDParam(c)
	if !ok {
		return "", "", false
	}
	return userID, noteID, true
}

func noteIDParam(c *gin.Context) (notes.NoteID, bool) {
	noteID, err := notes.NewNoteID(c.Param("noteId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_note_id"})
		return "", false
	}
	return noteID, true
}

func (h *httpHandler) respondNotesError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, notes.ErrNoteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, notes.ErrInvalidCourseID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_course_id"})
	case errors.Is(err, notes.ErrInvalidNoteID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_note_id"})
	default:
		h.respondServiceError(c, message, err)
	}
}
