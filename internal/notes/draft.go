package notes

import "time"

// applyDraft merges an auto-save patch into the stored note. Empty patch
// fields keep the stored value, so clearing a field to "" is not expressible.
func applyDraft(existing StudentNote, patch DraftPatch, savedAt time.Time) StudentNote {
	updated := existing
	updated.Title = pickDraftValue(patch.Title, existing.Title)
	updated.Content = pickDraftValue(patch.Content, existing.Content)
	updated.RichContent = pickDraftValue(patch.RichContent, existing.RichContent)
	updated.Status = NoteStatusDraft
	updated.IsDraft = true
	updated.LastSaved = savedAt
	updated.UpdatedAt = savedAt
	return updated
}

func pickDraftValue(incoming, stored string) string {
	if incoming != "" {
		return incoming
	}
	return stored
}

// applyPublish moves a note out of the draft state.
func applyPublish(existing StudentNote, publishedAt time.Time) StudentNote {
	updated := existing
	updated.Status = NoteStatusPublished
	updated.IsDraft = false
	updated.UpdatedAt = publishedAt
	return updated
}
