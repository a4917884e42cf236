package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/brainboost-api/internal/models"
)

// Models lists every persisted entity in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Student{},
		&models.UserSession{},
		&models.Course{},
		&models.Lesson{},
		&models.Enrollment{},
		&models.LessonProgress{},
		&models.CourseCompletion{},
		&models.Quiz{},
		&models.Question{},
		&models.Option{},
		&models.QuizResult{},
		&models.UserPoints{},
		&models.Badge{},
		&models.UserBadge{},
		&models.ActivityLog{},
	}
}

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
