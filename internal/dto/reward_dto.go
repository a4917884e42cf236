package dto

import (
	"time"

	"github.com/noah-isme/brainboost-api/internal/models"
)

// BadgeCreateRequest captures a new badge definition.
type BadgeCreateRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=100"`
	Description    string `json:"description" validate:"max=2000"`
	Icon           string `json:"icon" validate:"max=50"`
	PointsRequired int    `json:"points_required" validate:"min=0"`
}

// BadgeResponse serializes a badge definition.
type BadgeResponse struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Icon           string `json:"icon"`
	PointsRequired int    `json:"points_required"`
}

// EarnedBadgeResponse is a badge held by a student.
type EarnedBadgeResponse struct {
	BadgeResponse
	EarnedAt time.Time `json:"earned_at"`
}

// RewardSummaryResponse reports a student's points, level and badges.
type RewardSummaryResponse struct {
	StudentID         uint                  `json:"student_id"`
	TotalPoints       int                   `json:"total_points"`
	Level             int                   `json:"level"`
	PointsToNextLevel int                   `json:"points_to_next_level"`
	Badges            []EarnedBadgeResponse `json:"badges"`
	NextBadge         *BadgeResponse        `json:"next_badge,omitempty"`
	PointsToNextBadge int                   `json:"points_to_next_badge,omitempty"`
}

// LeaderboardEntry is one ranked student.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	StudentID   uint   `json:"student_id"`
	Name        string `json:"name"`
	TotalPoints int    `json:"total_points"`
	Level       int    `json:"level"`
}

// LeaderboardResponse lists top students. Source is "cache" or "database".
type LeaderboardResponse struct {
	Entries []LeaderboardEntry `json:"entries"`
	Source  string             `json:"source"`
}

// NewBadgeResponse converts a badge model.
func NewBadgeResponse(badge models.Badge) BadgeResponse {
	return BadgeResponse{
		ID:             badge.ID,
		Name:           badge.Name,
		Description:    badge.Description,
		Icon:           badge.Icon,
		PointsRequired: badge.PointsRequired,
	}
}

// NewBadgeResponses converts a slice of badges, never returning nil.
func NewBadgeResponses(badges []models.Badge) []BadgeResponse {
	responses := make([]BadgeResponse, 0, len(badges))
	for _, badge := range badges {
		responses = append(responses, NewBadgeResponse(badge))
	}
	return responses
}
