package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/brainboost-api/internal/database"
	"github.com/noah-isme/brainboost-api/internal/models"
	"github.com/noah-isme/brainboost-api/internal/repository"
	"github.com/noah-isme/brainboost-api/pkg/events"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func ptrUint(v uint) *uint {
	return &v
}

func ptrBool(v bool) *bool {
	return &v
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	return repository.NewStore(newTestDB(t))
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count(eventType events.Type) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, event := range p.events {
		if event.Type == eventType {
			total++
		}
	}
	return total
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls map[uint]int
}

func (c *countingInvalidator) Invalidate(_ context.Context, studentID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[uint]int{}
	}
	c.calls[studentID]++
}

func seedStudent(t *testing.T, store *repository.Store, name string) models.Student {
	t.Helper()
	student := models.Student{Name: name, Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com"}
	require.NoError(t, store.Students.Create(context.Background(), &student))
	return student
}

func seedCourse(t *testing.T, store *repository.Store, title string, active bool) models.Course {
	t.Helper()
	course := models.Course{Title: title, IsActive: active}
	require.NoError(t, store.Catalog.CreateCourse(context.Background(), &course))
	return course
}

func seedLesson(t *testing.T, store *repository.Store, courseID uint, order int, contentType string) models.Lesson {
	t.Helper()
	lesson := models.Lesson{
		CourseID:    courseID,
		Title:       fmt.Sprintf("Lesson %d", order),
		ContentType: contentType,
		Order:       order,
		IsActive:    true,
	}
	if contentType == models.ContentTypePDF {
		lesson.PDFFile = fmt.Sprintf("https://cdn.example.com/lesson-%d.pdf", order)
	} else {
		lesson.VideoFile = fmt.Sprintf("https://cdn.example.com/lesson-%d.mp4", order)
	}
	require.NoError(t, store.Catalog.CreateLesson(context.Background(), &lesson))
	return lesson
}

func seedEnrollment(t *testing.T, store *repository.Store, studentID, courseID uint) {
	t.Helper()
	_, err := store.Enrollments.Enroll(context.Background(), &models.Enrollment{
		StudentID:  studentID,
		CourseID:   courseID,
		EnrolledAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}

func seedBadge(t *testing.T, store *repository.Store, name string, points int) models.Badge {
	t.Helper()
	badge := models.Badge{Name: name, PointsRequired: points}
	require.NoError(t, store.Rewards.CreateBadge(context.Background(), &badge))
	return badge
}

func studentActor(student models.Student) Actor {
	return NewActor(student.ID, models.RoleStudent)
}

func instructorActor() Actor {
	return NewActor(900, models.RoleInstructor)
}
