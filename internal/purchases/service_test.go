package purchases

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type counterIDProvider struct {
	mu   sync.Mutex
	next int
}

func (p *counterIDProvider) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("purchase-%d", p.next), nil
}

func newTestService(t *testing.T, logger *zap.Logger) (*Service, *gorm.DB) {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "purchases.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(&Course{}, &Purchase{}))

	service, err := NewService(ServiceConfig{
		Database:   database,
		Clock:      func() time.Time { return time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC) },
		IDProvider: &counterIDProvider{},
		Logger:     logger,
	})
	require.NoError(t, err)
	return service, database
}

func seedCourse(t *testing.T, service *Service, courseID string) {
	t.Helper()
	_, err := service.UpsertCourse(context.Background(), CourseInput{ID: courseID, Title: "Course " + courseID, PriceCents: 4900, IsPublished: true})
	require.NoError(t, err)
}

func TestCompletePurchaseIsIdempotent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	service, database := newTestService(t, zap.New(core))
	seedCourse(t, service, "c1")
	ctx := context.Background()

	first, err := service.CompletePurchase(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "purchase-1", first.Purchase.ID)

	second, err := service.CompletePurchase(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Purchase.ID, second.Purchase.ID)

	var count int64
	require.NoError(t, database.Model(&Purchase{}).Where("user_id = ? AND course_id = ?", "u1", "c1").Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, 1, logs.FilterMessage("purchase completed").Len())
}

func TestCompletePurchaseConcurrentDuplicatesCollapse(t *testing.T) {
	service, database := newTestService(t, nil)
	seedCourse(t, service, "c1")

	const callers = 6
	var waitGroup sync.WaitGroup
	results := make(chan CompletionResult, callers)
	for caller := 0; caller < callers; caller++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			result, err := service.CompletePurchase(context.Background(), "u1", "c1")
			assert.NoError(t, err)
			results <- result
		}()
	}
	waitGroup.Wait()
	close(results)

	created := 0
	for result := range results {
		if result.Created {
			created++
		}
	}
	assert.Equal(t, 1, created)

	var count int64
	require.NoError(t, database.Model(&Purchase{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCompletePurchaseUnknownCourse(t *testing.T) {
	service, _ := newTestService(t, nil)

	_, err := service.CompletePurchase(context.Background(), "u1", "missing")
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestCompletePurchaseRejectsEmptyIdentifiers(t *testing.T) {
	service, _ := newTestService(t, nil)

	_, err := service.CompletePurchase(context.Background(), " ", "c1")
	require.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestHasPurchaseAndList(t *testing.T) {
	service, _ := newTestService(t, nil)
	seedCourse(t, service, "c1")
	seedCourse(t, service, "c2")
	ctx := context.Background()

	owned, err := service.HasPurchase(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.False(t, owned)

	_, err = service.CompletePurchase(ctx, "u1", "c1")
	require.NoError(t, err)

	owned, err = service.HasPurchase(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = service.HasPurchase(ctx, "u2", "c1")
	require.NoError(t, err)
	assert.False(t, owned)

	listed, err := service.ListPurchases(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "c1", listed[0].CourseID)
}

func TestUpsertCourseRefreshesExistingEntry(t *testing.T) {
	service, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := service.UpsertCourse(ctx, CourseInput{ID: "c1", Title: "Draft", PriceCents: 100})
	require.NoError(t, err)
	course, err := service.UpsertCourse(ctx, CourseInput{ID: "c1", Title: "Go in Practice", PriceCents: 2500, IsPublished: true})
	require.NoError(t, err)

	assert.Equal(t, "Go in Practice", course.Title)
	assert.EqualValues(t, 2500, course.PriceCents)
	assert.True(t, course.IsPublished)

	_, err = service.UpsertCourse(ctx, CourseInput{ID: "c2", Title: "Broken", PriceCents: -1})
	require.ErrorIs(t, err, ErrInvalidCourse)

	_, err = service.GetCourse(ctx, "nope")
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestServiceWithoutDatabaseReportsCode(t *testing.T) {
	service := &Service{}

	_, err := service.CompletePurchase(context.Background(), "u1", "c1")
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, "purchases.complete_purchase.missing_database", serviceErr.Code())
}
