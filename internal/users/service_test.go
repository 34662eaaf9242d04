package users

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/lumen/backend/internal/auth"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Identity{}); err != nil {
		t.Fatalf("failed to migrate identity schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(1, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func TestResolveUserIDStripsProviderPrefix(t *testing.T) {
	service, db := newTestService(t)

	claims := auth.SessionClaims{
		UserID:          "google:12345",
		UserEmail:       "user@example.com",
		UserDisplayName: "Example User",
		UserAvatarURL:   "https://example.com/avatar.png",
	}
	userID, err := service.ResolveUserID(context.Background(), claims)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if userID != "12345" {
		t.Fatalf("expected canonical user id without provider prefix, got %q", userID)
	}

	userID, err = service.ResolveUserID(context.Background(), claims)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if userID != "12345" {
		t.Fatalf("expected canonical user id to remain stable, got %q", userID)
	}

	var count int64
	if err := db.Model(&Identity{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single identity row, got %d", count)
	}
}

func TestResolveUserIDRefreshesProfile(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()

	if _, err := service.ResolveUserID(ctx, auth.SessionClaims{UserID: "u-1", UserDisplayName: "Old Name"}); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if _, err := service.ResolveUserID(ctx, auth.SessionClaims{UserID: "u-1", UserDisplayName: "New Name"}); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if _, err := service.ResolveUserID(ctx, auth.SessionClaims{UserID: "u-1"}); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	var stored Identity
	if err := db.Where("provider = ? AND subject = ?", defaultProvider, "u-1").Take(&stored).Error; err != nil {
		t.Fatalf("failed to load identity: %v", err)
	}
	if stored.DisplayName != "New Name" {
		t.Fatalf("expected refreshed display name, got %q", stored.DisplayName)
	}
}

func TestResolveUserIDRejectsEmptyClaims(t *testing.T) {
	service, _ := newTestService(t)

	if _, err := service.ResolveUserID(context.Background(), auth.SessionClaims{}); err != ErrInvalidIdentity {
		t.Fatalf("expected invalid identity error, got %v", err)
	}
}
