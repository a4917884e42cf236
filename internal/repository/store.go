package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles the repositories that share one database handle so multi-entity
// writes can run inside a single transaction.
type Store struct {
	db          *gorm.DB
	Students    StudentRepository
	Sessions    SessionRepository
	Catalog     CatalogRepository
	Enrollments EnrollmentRepository
	Progress    ProgressRepository
	Quizzes     QuizRepository
	Rewards     RewardRepository
	Activity    ActivityLogRepository
}

// NewStore constructs every repository against db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		Students:    NewStudentRepository(db),
		Sessions:    NewSessionRepository(db),
		Catalog:     NewCatalogRepository(db),
		Enrollments: NewEnrollmentRepository(db),
		Progress:    NewProgressRepository(db),
		Quizzes:     NewQuizRepository(db),
		Rewards:     NewRewardRepository(db),
		Activity:    NewActivityLogRepository(db),
	}
}

// Transaction runs fn with a Store bound to a database transaction. Nested calls
// use savepoints, so a failing inner unit rolls back without aborting the caller
// unless the caller returns the error.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
