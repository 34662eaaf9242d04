package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/lumen/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/lumen/backend/internal/database"
	"github.com/MarcoPoloResearchLab/lumen/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/lumen/backend/internal/purchases"
	"github.com/MarcoPoloResearchLab/lumen/backend/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testSigningSecret = "router-test-secret"
	testIssuer        = "lumen-auth"
	testCookieName    = "app_session"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type counterIDProvider struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func (p *counterIDProvider) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("%s-%d", p.prefix, p.next), nil
}

type testAPI struct {
	handler   http.Handler
	db        *gorm.DB
	notes     *notes.Service
	purchases *purchases.Service
}

func newTestAPI(t *testing.T, logger *zap.Logger) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := database.Open(database.Options{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "router.db"),
	}, logger)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	clock := func() time.Time { return testNow }
	notesService, err := notes.NewService(notes.ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &counterIDProvider{prefix: "note"},
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("failed to build notes service: %v", err)
	}
	purchasesService, err := purchases.NewService(purchases.ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &counterIDProvider{prefix: "purchase"},
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("failed to build purchases service: %v", err)
	}
	usersService, err := users.NewService(users.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to build users service: %v", err)
	}
	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		CookieName:    testCookieName,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to build session validator: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		SessionValidator: validator,
		Users:            usersService,
		NotesService:     notesService,
		PurchasesService: purchasesService,
		Logger:           logger,
		AllowedOrigins:   []string{"https://learn.example.com"},
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return &testAPI{handler: handler, db: db, notes: notesService, purchases: purchasesService}
}

func sessionToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(testNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign session token: %v", err)
	}
	return signed
}

// do issues a request against the router. An empty userID sends no session.
func (api *testAPI) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		request.AddCookie(&http.Cookie{Name: testCookieName, Value: sessionToken(t, userID)})
	}
	recorder := httptest.NewRecorder()
	api.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeJSON[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var payload T
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func (api *testAPI) seedStudentNote(t *testing.T, owner, title, content string) notes.StudentNote {
	t.Helper()
	note, err := api.notes.CreateStudentNote(context.Background(), notes.UserID(owner), notes.StudentNoteInput{
		CourseID: notes.CourseID("course-1"),
		Title:    title,
		Content:  content,
	})
	if err != nil {
		t.Fatalf("failed to seed student note: %v", err)
	}
	return note
}

func (api *testAPI) seedSharedNote(t *testing.T, author string, downloads int64) notes.SharedNote {
	t.Helper()
	note, err := api.notes.CreateSharedNote(context.Background(), notes.UserID(author), notes.SharedNoteInput{
		CourseID: notes.CourseID("course-1"),
		Title:    "Slides",
		FileURL:  "https://files.example.com/slides.pdf",
	})
	if err != nil {
		t.Fatalf("failed to seed shared note: %v", err)
	}
	if downloads > 0 {
		if err := api.db.Model(&notes.SharedNote{}).Where("id = ?", note.ID).Update("downloads", downloads).Error; err != nil {
			t.Fatalf("failed to seed downloads: %v", err)
		}
		note.Downloads = downloads
	}
	return note
}

func (api *testAPI) seedCourse(t *testing.T, courseID string) {
	t.Helper()
	if _, err := api.purchases.UpsertCourse(context.Background(), purchases.CourseInput{
		ID:          courseID,
		Title:       "Course " + courseID,
		PriceCents:  4900,
		IsPublished: true,
	}); err != nil {
		t.Fatalf("failed to seed course: %v", err)
	}
}
