package notes

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDProvider struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("%s-%d", p.prefix, p.next), nil
}

type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Advance(step time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(step)
}

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "notes.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := database.AutoMigrate(&StudentNote{}, &SharedNote{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return database
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *testClock) {
	t.Helper()
	database := newTestDatabase(t)
	clock := newTestClock()
	service, err := NewService(ServiceConfig{
		Database:   database,
		Clock:      clock.Now,
		IDProvider: &sequenceIDProvider{prefix: "note"},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service, database, clock
}

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func mustNoteID(t *testing.T, value string) NoteID {
	t.Helper()
	id, err := NewNoteID(value)
	if err != nil {
		t.Fatalf("unexpected note id error: %v", err)
	}
	return id
}

func mustCourseID(t *testing.T, value string) CourseID {
	t.Helper()
	id, err := NewCourseID(value)
	if err != nil {
		t.Fatalf("unexpected course id error: %v", err)
	}
	return id
}

func insertStudentNote(t *testing.T, database *gorm.DB, note StudentNote) StudentNote {
	t.Helper()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = note.CreatedAt
	}
	if note.LastSaved.IsZero() {
		note.LastSaved = note.CreatedAt
	}
	if err := database.Create(&note).Error; err != nil {
		t.Fatalf("failed to insert student note: %v", err)
	}
	return note
}

func insertSharedNote(t *testing.T, database *gorm.DB, note SharedNote) SharedNote {
	t.Helper()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = note.CreatedAt
	}
	if err := database.Create(&note).Error; err != nil {
		t.Fatalf("failed to insert shared note: %v", err)
	}
	return note
}
