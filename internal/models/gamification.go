package models

import "time"

// PointsPerLevel is the number of points separating two consecutive levels.
const PointsPerLevel = 100

// LevelForPoints derives the level from a point total.
func LevelForPoints(total int) int {
	if total < 0 {
		total = 0
	}
	return total/PointsPerLevel + 1
}

// UserPoints accumulates reward points for a student.
type UserPoints struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StudentID   uint      `gorm:"not null;uniqueIndex" json:"student_id"`
	TotalPoints int       `gorm:"not null;default:0;index" json:"total_points"`
	Level       int       `gorm:"not null;default:1" json:"level"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Student     Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Badge is unlocked once a student's points reach PointsRequired.
type Badge struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	Icon           string    `gorm:"size:50" json:"icon"`
	PointsRequired int       `gorm:"not null;index" json:"points_required"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserBadge records an unlocked badge. Rows are never removed.
type UserBadge struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_user_badges_student_badge" json:"student_id"`
	BadgeID   uint      `gorm:"not null;uniqueIndex:idx_user_badges_student_badge" json:"badge_id"`
	EarnedAt  time.Time `gorm:"not null" json:"earned_at"`
	Badge     Badge     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"badge"`
	Student   Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// TableName pins the table name used by raw queries.
func (UserPoints) TableName() string {
	return "user_points"
}
