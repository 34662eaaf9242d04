package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/lumen/backend/internal/notes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationAlignDraftFlags = "2026-05-12_align_student_note_draft_flags"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationAlignDraftFlags, apply: alignDraftFlags},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(transaction *gorm.DB) error {
			if err := migration.apply(transaction); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return transaction.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

// alignDraftFlags rewrites is_draft from status for rows written before the
// two columns were kept in lockstep.
func alignDraftFlags(db *gorm.DB) error {
	if err := db.Model(&notes.StudentNote{}).
		Where("status = ? AND is_draft = ?", notes.NoteStatusDraft, false).
		Update("is_draft", true).Error; err != nil {
		return err
	}
	return db.Model(&notes.StudentNote{}).
		Where("status = ? AND is_draft = ?", notes.NoteStatusPublished, true).
		Update("is_draft", false).Error
}
