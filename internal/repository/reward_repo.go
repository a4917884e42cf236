package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/brainboost-api/internal/models"
)

// RewardRepository persists points, badges and unlocked badges.
type RewardRepository interface {
	EnsurePoints(ctx context.Context, studentID uint) error
	IncrementPoints(ctx context.Context, studentID uint, amount int) (models.UserPoints, error)
	GetPoints(ctx context.Context, studentID uint) (models.UserPoints, error)
	ListUnlockableBadges(ctx context.Context, studentID uint, totalPoints int) ([]models.Badge, error)
	GrantBadge(ctx context.Context, grant *models.UserBadge) (bool, error)
	ListStudentBadges(ctx context.Context, studentID uint) ([]models.UserBadge, error)
	NextBadge(ctx context.Context, totalPoints int) (models.Badge, error)
	CreateBadge(ctx context.Context, badge *models.Badge) error
	ListBadges(ctx context.Context) ([]models.Badge, error)
	TopStudents(ctx context.Context, limit int) ([]models.UserPoints, error)
}

type rewardRepository struct {
	db *gorm.DB
}

// NewRewardRepository constructs the reward repository.
func NewRewardRepository(db *gorm.DB) RewardRepository {
	return &rewardRepository{db: db}
}

func (r *rewardRepository) EnsurePoints(ctx context.Context, studentID uint) error {
	points := models.UserPoints{StudentID: studentID, TotalPoints: 0, Level: 1}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}},
			DoNothing: true,
		}).
		Omit(clause.Associations).
		Create(&points).Error
}

// IncrementPoints adds amount and recomputes the level in one statement so concurrent
// awards to the same student never lose an update.
func (r *rewardRepository) IncrementPoints(ctx context.Context, studentID uint, amount int) (models.UserPoints, error) {
	result := r.db.WithContext(ctx).Model(&models.UserPoints{}).
		Where("student_id = ?", studentID).
		Updates(map[string]interface{}{
			"total_points": gorm.Expr("total_points + ?", amount),
			"level":        gorm.Expr("(total_points + ?) / ? + 1", amount, models.PointsPerLevel),
		})
	if result.Error != nil {
		return models.UserPoints{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.UserPoints{}, gorm.ErrRecordNotFound
	}

	return r.GetPoints(ctx, studentID)
}

func (r *rewardRepository) GetPoints(ctx context.Context, studentID uint) (models.UserPoints, error) {
	var points models.UserPoints
	if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&points).Error; err != nil {
		return models.UserPoints{}, err
	}
	return points, nil
}

func (r *rewardRepository) ListUnlockableBadges(ctx context.Context, studentID uint, totalPoints int) ([]models.Badge, error) {
	held := r.db.Model(&models.UserBadge{}).Select("badge_id").Where("student_id = ?", studentID)

	var badges []models.Badge
	if err := r.db.WithContext(ctx).
		Where("points_required <= ?", totalPoints).
		Where("id NOT IN (?)", held).
		Order("points_required ASC").
		Order("id ASC").
		Find(&badges).Error; err != nil {
		return nil, err
	}
	return badges, nil
}

// GrantBadge inserts the unlock unless it already exists; a losing concurrent writer gets false, not an error.
func (r *rewardRepository) GrantBadge(ctx context.Context, grant *models.UserBadge) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "badge_id"}},
			DoNothing: true,
		}).
		Omit(clause.Associations).
		Create(grant)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *rewardRepository) ListStudentBadges(ctx context.Context, studentID uint) ([]models.UserBadge, error) {
	var badges []models.UserBadge
	if err := r.db.WithContext(ctx).
		Preload("Badge").
		Where("student_id = ?", studentID).
		Order("earned_at ASC").
		Order("id ASC").
		Find(&badges).Error; err != nil {
		return nil, err
	}
	return badges, nil
}

func (r *rewardRepository) NextBadge(ctx context.Context, totalPoints int) (models.Badge, error) {
	var badge models.Badge
	if err := r.db.WithContext(ctx).
		Where("points_required > ?", totalPoints).
		Order("points_required ASC").
		First(&badge).Error; err != nil {
		return models.Badge{}, err
	}
	return badge, nil
}

func (r *rewardRepository) CreateBadge(ctx context.Context, badge *models.Badge) error {
	return r.db.WithContext(ctx).Create(badge).Error
}

func (r *rewardRepository) ListBadges(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	if err := r.db.WithContext(ctx).Order("points_required ASC").Find(&badges).Error; err != nil {
		return nil, err
	}
	return badges, nil
}

func (r *rewardRepository) TopStudents(ctx context.Context, limit int) ([]models.UserPoints, error) {
	query := r.db.WithContext(ctx).
		Preload("Student").
		Order("total_points DESC").
		Order("level DESC").
		Order("student_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.UserPoints
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
