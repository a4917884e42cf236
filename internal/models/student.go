package models

import "time"

const (
	// RoleStudent is the default role for learners.
	RoleStudent = "student"
	// RoleInstructor may author courses, lessons, quizzes and badges.
	RoleInstructor = "instructor"
)

// Student represents a learner account together with its daily streak state.
type Student struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Name           string     `gorm:"size:255;not null" json:"name"`
	Email          string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role           string     `gorm:"size:32;not null;default:student" json:"role"`
	CurrentStreak  int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak  int        `gorm:"not null;default:0" json:"longest_streak"`
	LastActiveDate *time.Time `gorm:"type:date" json:"last_active_date"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// DisplayName returns the name printed on certificates and leaderboards.
func (s Student) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}

// UserSession records a single login/logout window for a student.
type UserSession struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	StudentID  uint       `gorm:"not null;index" json:"student_id"`
	LoginTime  time.Time  `gorm:"not null;index" json:"login_time"`
	LogoutTime *time.Time `json:"logout_time"`
	Student    Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Duration returns the session length, treating an open session as ending at reference.
func (s UserSession) Duration(reference time.Time) time.Duration {
	end := reference
	if s.LogoutTime != nil {
		end = *s.LogoutTime
	}
	if end.Before(s.LoginTime) {
		return 0
	}
	return end.Sub(s.LoginTime)
}
