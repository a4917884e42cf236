package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/models"
	"github.com/noah-isme/brainboost-api/internal/observability"
	"github.com/noah-isme/brainboost-api/internal/repository"
	"github.com/noah-isme/brainboost-api/pkg/events"
)

// AwardResult describes a committed or pending point award.
type AwardResult struct {
	StudentID     uint
	Amount        int
	Points        models.UserPoints
	PreviousLevel int
	Unlocked      []models.Badge
	AwardedAt     time.Time
}

// LeveledUp reports whether the award crossed a level boundary.
func (r AwardResult) LeveledUp() bool {
	return r.Points.Level > r.PreviousLevel
}

// RewardService owns points, levels, badges and the leaderboard.
type RewardService interface {
	AwardPoints(ctx context.Context, studentID uint, amount int) (AwardResult, error)
	AwardPointsTx(ctx context.Context, tx *repository.Store, studentID uint, amount int) (AwardResult, error)
	SyncBadges(ctx context.Context, studentID uint) ([]models.Badge, error)
	Announce(ctx context.Context, award AwardResult)
	Summary(ctx context.Context, actor Actor) (dto.RewardSummaryResponse, error)
	Leaderboard(ctx context.Context, limit int) (dto.LeaderboardResponse, error)
	RebuildLeaderboard(ctx context.Context) error
	CreateBadge(ctx context.Context, actor Actor, req dto.BadgeCreateRequest) (dto.BadgeResponse, error)
	ListBadges(ctx context.Context) ([]dto.BadgeResponse, error)
}

type rewardService struct {
	store       *repository.Store
	cache       *LeaderboardCache
	publisher   events.Publisher
	activity    ActivityRecorder
	validator   *validator.Validate
	policy      *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	defaultSize int
	now         func() time.Time
}

// NewRewardService constructs the reward engine. cache, publisher and activity may be nil.
func NewRewardService(store *repository.Store, cache *LeaderboardCache, publisher events.Publisher, activity ActivityRecorder, validate *validator.Validate, leaderboardSize int, logger zerolog.Logger) RewardService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if leaderboardSize <= 0 {
		leaderboardSize = 10
	}
	return &rewardService{
		store:       store,
		cache:       cache,
		publisher:   publisher,
		activity:    activity,
		validator:   validate,
		policy:      bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "reward_service").Logger(),
		tracer:      otel.Tracer(tracerName + "/reward"),
		defaultSize: leaderboardSize,
		now:         time.Now,
	}
}

func (s *rewardService) AwardPoints(ctx context.Context, studentID uint, amount int) (AwardResult, error) {
	var award AwardResult
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		award, err = s.AwardPointsTx(ctx, tx, studentID, amount)
		return err
	})
	if err != nil {
		return AwardResult{}, err
	}

	s.Announce(ctx, award)
	return award, nil
}

// AwardPointsTx applies the award inside the caller's transaction. The caller must call
// Announce once the transaction has committed.
func (s *rewardService) AwardPointsTx(ctx context.Context, tx *repository.Store, studentID uint, amount int) (AwardResult, error) {
	ctx, span := s.tracer.Start(ctx, "reward.award_points")
	defer span.End()
	span.SetAttributes(attribute.Int("reward.student_id", int(studentID)), attribute.Int("reward.amount", amount))

	if amount <= 0 {
		failSpan(span, ErrInvalidPointsAmount, "invalid_amount")
		return AwardResult{}, ErrInvalidPointsAmount
	}

	if err := tx.Rewards.EnsurePoints(ctx, studentID); err != nil {
		failSpan(span, err, "ensure_points_failed")
		return AwardResult{}, fmt.Errorf("ensure points row: %w", err)
	}

	points, err := tx.Rewards.IncrementPoints(ctx, studentID, amount)
	if err != nil {
		failSpan(span, err, "increment_failed")
		return AwardResult{}, fmt.Errorf("increment points: %w", err)
	}

	unlocked, err := s.syncBadges(ctx, tx, studentID, points.TotalPoints)
	if err != nil {
		failSpan(span, err, "badge_sync_failed")
		return AwardResult{}, err
	}

	span.SetAttributes(attribute.Int("reward.total_points", points.TotalPoints), attribute.Int("reward.badges_unlocked", len(unlocked)))

	return AwardResult{
		StudentID:     studentID,
		Amount:        amount,
		Points:        points,
		PreviousLevel: models.LevelForPoints(points.TotalPoints - amount),
		Unlocked:      unlocked,
		AwardedAt:     s.now(),
	}, nil
}

func (s *rewardService) SyncBadges(ctx context.Context, studentID uint) ([]models.Badge, error) {
	var unlocked []models.Badge
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Rewards.EnsurePoints(ctx, studentID); err != nil {
			return fmt.Errorf("ensure points row: %w", err)
		}
		points, err := tx.Rewards.GetPoints(ctx, studentID)
		if err != nil {
			return err
		}
		unlocked, err = s.syncBadges(ctx, tx, studentID, points.TotalPoints)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.announceBadges(ctx, studentID, unlocked)
	return unlocked, nil
}

// syncBadges grants every badge whose threshold is met. Grants lost to a concurrent writer are skipped.
func (s *rewardService) syncBadges(ctx context.Context, tx *repository.Store, studentID uint, totalPoints int) ([]models.Badge, error) {
	candidates, err := tx.Rewards.ListUnlockableBadges(ctx, studentID, totalPoints)
	if err != nil {
		return nil, fmt.Errorf("list unlockable badges: %w", err)
	}

	unlocked := make([]models.Badge, 0, len(candidates))
	for _, badge := range candidates {
		created, err := tx.Rewards.GrantBadge(ctx, &models.UserBadge{
			StudentID: studentID,
			BadgeID:   badge.ID,
			EarnedAt:  s.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("grant badge %d: %w", badge.ID, err)
		}
		if created {
			unlocked = append(unlocked, badge)
		}
	}
	return unlocked, nil
}

// Announce runs the post-commit side effects of an award: metrics, events and the leaderboard cache.
// Failures are logged; the award itself is already durable.
func (s *rewardService) Announce(ctx context.Context, award AwardResult) {
	if award.StudentID == 0 || award.Amount <= 0 {
		return
	}

	observability.PointsAwarded().Add(float64(award.Amount))
	s.announceBadges(ctx, award.StudentID, award.Unlocked)

	if award.LeveledUp() {
		s.logger.Info().
			Uint("student_id", award.StudentID).
			Int("level", award.Points.Level).
			Msg("student reached a new level")
	}

	if s.cache == nil {
		return
	}
	name := ""
	if student, err := s.store.Students.GetByID(ctx, award.StudentID); err == nil {
		name = student.DisplayName()
	}
	if err := s.cache.Update(ctx, award.StudentID, name, award.Points.TotalPoints); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", award.StudentID).Msg("failed to update leaderboard cache")
	}
}

func (s *rewardService) announceBadges(ctx context.Context, studentID uint, unlocked []models.Badge) {
	for _, badge := range unlocked {
		observability.BadgesUnlocked().WithLabelValues(badge.Name).Inc()

		event := events.New(events.BadgeUnlocked, studentID, s.now())
		event.BadgeID = badge.ID
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Uint("badge_id", badge.ID).Msg("failed to publish badge event")
		}
	}
}

func (s *rewardService) Summary(ctx context.Context, actor Actor) (dto.RewardSummaryResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.RewardSummaryResponse{}, err
	}

	points, err := s.store.Rewards.GetPoints(ctx, actor.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RewardSummaryResponse{}, err
		}
		points = models.UserPoints{StudentID: actor.ID, Level: 1}
	}

	held, err := s.store.Rewards.ListStudentBadges(ctx, actor.ID)
	if err != nil {
		return dto.RewardSummaryResponse{}, err
	}

	badges := make([]dto.EarnedBadgeResponse, 0, len(held))
	for _, grant := range held {
		badges = append(badges, dto.EarnedBadgeResponse{
			BadgeResponse: dto.NewBadgeResponse(grant.Badge),
			EarnedAt:      grant.EarnedAt,
		})
	}

	summary := dto.RewardSummaryResponse{
		StudentID:         actor.ID,
		TotalPoints:       points.TotalPoints,
		Level:             points.Level,
		PointsToNextLevel: models.PointsPerLevel - points.TotalPoints%models.PointsPerLevel,
		Badges:            badges,
	}

	next, err := s.store.Rewards.NextBadge(ctx, points.TotalPoints)
	switch {
	case err == nil:
		response := dto.NewBadgeResponse(next)
		summary.NextBadge = &response
		summary.PointsToNextBadge = next.PointsRequired - points.TotalPoints
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.RewardSummaryResponse{}, err
	}

	return summary, nil
}

func (s *rewardService) Leaderboard(ctx context.Context, limit int) (dto.LeaderboardResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = s.defaultSize
	}

	if s.cache != nil {
		ready, err := s.cache.Ready(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache state")
		}
		if ready {
			entries, err := s.cache.Top(ctx, limit)
			if err == nil {
				return dto.LeaderboardResponse{Entries: entries, Source: "cache"}, nil
			}
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
		} else if err == nil {
			if err := s.RebuildLeaderboard(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("failed to rebuild leaderboard cache")
			}
		}
	}

	rows, err := s.store.Rewards.TopStudents(ctx, limit)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}

	entries := make([]dto.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, dto.LeaderboardEntry{
			Rank:        i + 1,
			StudentID:   row.StudentID,
			Name:        row.Student.DisplayName(),
			TotalPoints: row.TotalPoints,
			Level:       row.Level,
		})
	}
	return dto.LeaderboardResponse{Entries: entries, Source: "database"}, nil
}

// RebuildLeaderboard reloads the cached sorted set from the database.
func (s *rewardService) RebuildLeaderboard(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}

	rows, err := s.store.Rewards.TopStudents(ctx, 0)
	if err != nil {
		return fmt.Errorf("load leaderboard rows: %w", err)
	}
	if err := s.cache.Replace(ctx, rows); err != nil {
		return fmt.Errorf("replace leaderboard cache: %w", err)
	}

	s.logger.Debug().Int("students", len(rows)).Msg("leaderboard cache rebuilt")
	return nil
}

func (s *rewardService) CreateBadge(ctx context.Context, actor Actor, req dto.BadgeCreateRequest) (dto.BadgeResponse, error) {
	if err := requireCapability(actor, CapabilityInstructor); err != nil {
		return dto.BadgeResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.BadgeResponse{}, err
	}

	badge := models.Badge{
		Name:           plainText(s.policy, req.Name),
		Description:    plainText(s.policy, req.Description),
		Icon:           strings.TrimSpace(req.Icon),
		PointsRequired: req.PointsRequired,
	}
	if badge.Name == "" {
		return dto.BadgeResponse{}, ErrBlankName
	}

	existing, err := s.store.Rewards.ListBadges(ctx)
	if err != nil {
		return dto.BadgeResponse{}, err
	}
	for _, other := range existing {
		if strings.EqualFold(other.Name, badge.Name) {
			return dto.BadgeResponse{}, ErrDuplicateBadge
		}
	}

	if err := s.store.Rewards.CreateBadge(ctx, &badge); err != nil {
		return dto.BadgeResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "badge.created",
		EntityType: "badge",
		EntityID:   &badge.ID,
		Metadata:   map[string]interface{}{"points_required": badge.PointsRequired},
	})

	return dto.NewBadgeResponse(badge), nil
}

func (s *rewardService) ListBadges(ctx context.Context) ([]dto.BadgeResponse, error) {
	badges, err := s.store.Rewards.ListBadges(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewBadgeResponses(badges), nil
}
