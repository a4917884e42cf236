package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/brainboost-api/internal/models"
)

// SessionRepository persists login/logout windows.
type SessionRepository interface {
	Create(ctx context.Context, session *models.UserSession) error
	LatestOpen(ctx context.Context, studentID uint) (models.UserSession, error)
	Close(ctx context.Context, id uint, at time.Time) error
	ListSince(ctx context.Context, studentID uint, since time.Time) ([]models.UserSession, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository constructs the session repository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.UserSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) LatestOpen(ctx context.Context, studentID uint) (models.UserSession, error) {
	var session models.UserSession
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("logout_time IS NULL").
		Order("login_time DESC").
		First(&session).Error; err != nil {
		return models.UserSession{}, err
	}
	return session, nil
}

func (r *sessionRepository) Close(ctx context.Context, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("id = ?", id).
		Where("logout_time IS NULL").
		Update("logout_time", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *sessionRepository) ListSince(ctx context.Context, studentID uint, since time.Time) ([]models.UserSession, error) {
	var sessions []models.UserSession
	query := r.db.WithContext(ctx).Where("student_id = ?", studentID)
	if !since.IsZero() {
		query = query.Where("login_time >= ?", since)
	}
	if err := query.Order("login_time ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
