package dto

import "time"

// StreakResponse reports a student's streak counters.
type StreakResponse struct {
	StudentID      uint   `json:"student_id"`
	CurrentStreak  int    `json:"current_streak"`
	LongestStreak  int    `json:"longest_streak"`
	LastActiveDate string `json:"last_active_date,omitempty"`
	ActiveToday    bool   `json:"active_today"`
	Outcome        string `json:"outcome,omitempty"`
}

// SessionResponse serializes a login window.
type SessionResponse struct {
	ID         uint            `json:"id"`
	StudentID  uint            `json:"student_id"`
	LoginTime  time.Time       `json:"login_time"`
	LogoutTime *time.Time      `json:"logout_time,omitempty"`
	Minutes    int             `json:"minutes"`
	Streak     *StreakResponse `json:"streak,omitempty"`
}

// CertificateEligibilityResponse answers whether a certificate can be issued.
type CertificateEligibilityResponse struct {
	CourseID uint `json:"course_id"`
	Eligible bool `json:"eligible"`
}

// CertificateData is everything a renderer needs to produce a certificate.
type CertificateData struct {
	CertificateNumber string    `json:"certificate_number"`
	StudentID         uint      `json:"student_id"`
	StudentName       string    `json:"student_name"`
	CourseID          uint      `json:"course_id"`
	CourseTitle       string    `json:"course_title"`
	IssuedOn          string    `json:"issued_on"`
	CompletedAt       time.Time `json:"completed_at"`
}

// DailyMinutes is time spent learning on one calendar day.
type DailyMinutes struct {
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
}

// CourseProgressSummary is the dashboard view of one enrolled course.
type CourseProgressSummary struct {
	CourseID         uint   `json:"course_id"`
	Title            string `json:"title"`
	CompletedLessons int64  `json:"completed_lessons"`
	TotalLessons     int64  `json:"total_lessons"`
	Percentage       int    `json:"percentage"`
	Completed        bool   `json:"completed"`
}

// DashboardResponse aggregates learning metrics for a student.
type DashboardResponse struct {
	StudentID          uint                    `json:"student_id"`
	EnrolledCourses    int                     `json:"enrolled_courses"`
	CompletedCourses   int                     `json:"completed_courses"`
	TotalLessons       int64                   `json:"total_lessons"`
	CompletedLessons   int64                   `json:"completed_lessons"`
	ProgressPercentage int                     `json:"progress_percentage"`
	TotalPoints        int                     `json:"total_points"`
	Level              int                     `json:"level"`
	BadgeCount         int                     `json:"badge_count"`
	CurrentStreak      int                     `json:"current_streak"`
	LongestStreak      int                     `json:"longest_streak"`
	MinutesToday       int                     `json:"minutes_today"`
	DailyMinutes       []DailyMinutes          `json:"daily_minutes"`
	Courses            []CourseProgressSummary `json:"courses"`
	GeneratedAt        time.Time               `json:"generated_at"`
}
