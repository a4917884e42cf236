package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/models"
)

const (
	leaderboardKey      = "leaderboard:points"
	leaderboardNamesKey = "leaderboard:names"
	leaderboardReadyKey = "leaderboard:ready"
)

// LeaderboardCache keeps student point totals in a Redis sorted set. The set is only
// trusted while the ready marker exists; the marker expires so a missed update heals
// at the next rebuild.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaderboardCache wraps client. A nil client disables caching.
func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &LeaderboardCache{client: client, ttl: ttl}
}

// Ready reports whether the cached set reflects a full rebuild.
func (c *LeaderboardCache) Ready(ctx context.Context) (bool, error) {
	if c == nil {
		return false, nil
	}
	n, err := c.client.Exists(ctx, leaderboardReadyKey).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Replace swaps the whole set for rows in one MULTI/EXEC block.
func (c *LeaderboardCache) Replace(ctx context.Context, rows []models.UserPoints) error {
	if c == nil {
		return nil
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, leaderboardKey, leaderboardNamesKey)
		if len(rows) > 0 {
			members := make([]redis.Z, 0, len(rows))
			names := make(map[string]interface{}, len(rows))
			for _, row := range rows {
				member := strconv.FormatUint(uint64(row.StudentID), 10)
				members = append(members, redis.Z{Score: float64(row.TotalPoints), Member: member})
				names[member] = row.Student.DisplayName()
			}
			pipe.ZAdd(ctx, leaderboardKey, members...)
			pipe.HSet(ctx, leaderboardNamesKey, names)
		}
		pipe.Set(ctx, leaderboardReadyKey, time.Now().UTC().Format(time.RFC3339), c.ttl)
		return nil
	})
	return err
}

// Update writes one student's total if the set is ready; otherwise the next rebuild picks it up.
// Totals only grow, so a stale total announced late never lowers the cached score.
func (c *LeaderboardCache) Update(ctx context.Context, studentID uint, name string, totalPoints int) error {
	ready, err := c.Ready(ctx)
	if err != nil || !ready {
		return err
	}

	member := strconv.FormatUint(uint64(studentID), 10)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddGT(ctx, leaderboardKey, redis.Z{Score: float64(totalPoints), Member: member})
		pipe.HSet(ctx, leaderboardNamesKey, member, name)
		return nil
	})
	return err
}

// Top returns the highest ranked students. Ties on points order by ascending student id,
// including the students tied at the limit boundary.
func (c *LeaderboardCache) Top(ctx context.Context, limit int) ([]dto.LeaderboardEntry, error) {
	if c == nil {
		return nil, errors.New("leaderboard cache disabled")
	}
	if limit <= 0 {
		limit = 10
	}

	scored, err := c.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return []dto.LeaderboardEntry{}, nil
	}
	if len(scored) == limit {
		scored, err = c.withBoundaryTies(ctx, scored)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return memberID(scored[i].Member) < memberID(scored[j].Member)
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	members := make([]string, 0, len(scored))
	for _, z := range scored {
		members = append(members, fmt.Sprint(z.Member))
	}
	names, err := c.client.HMGet(ctx, leaderboardNamesKey, members...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]dto.LeaderboardEntry, 0, len(members))
	for i, member := range members {
		id, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			continue
		}
		points := int(scored[i].Score)
		name, _ := names[i].(string)
		entries = append(entries, dto.LeaderboardEntry{
			StudentID:   uint(id),
			Name:        name,
			TotalPoints: points,
			Level:       models.LevelForPoints(points),
		})
	}

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// withBoundaryTies replaces the members scored like the last one with every member holding that score.
func (c *LeaderboardCache) withBoundaryTies(ctx context.Context, scored []redis.Z) ([]redis.Z, error) {
	boundary := scored[len(scored)-1].Score
	score := strconv.FormatFloat(boundary, 'f', -1, 64)
	ties, err := c.client.ZRangeByScoreWithScores(ctx, leaderboardKey, &redis.ZRangeBy{Min: score, Max: score}).Result()
	if err != nil {
		return nil, err
	}

	merged := make([]redis.Z, 0, len(scored)+len(ties))
	for _, z := range scored {
		if z.Score > boundary {
			merged = append(merged, z)
		}
	}
	return append(merged, ties...), nil
}

func memberID(member interface{}) uint64 {
	id, err := strconv.ParseUint(fmt.Sprint(member), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
