package leaderboard

import (
	"context"
	"fmt"

	"github.com/kristian206/agent-ascend-server/internal/cache"
	"github.com/redis/go-redis/v9"
)

// Entry is one sorted-set row: a member and their mirrored SR.
type Entry struct {
	UserID string
	SR     int
	Rank   int64
}

// Mirror keeps a per-season Redis sorted set in step with the SR column of
// the season records. PostgreSQL stays the system of record; the mirror
// serves cheap rank-position lookups.
type Mirror struct {
	rdb *redis.Client
}

func NewMirror(rdb *redis.Client) *Mirror {
	return &Mirror{rdb: rdb}
}

// UpdateSR writes a member's current SR into the season's sorted set.
func (m *Mirror) UpdateSR(ctx context.Context, seasonID, userID string, sr int) error {
	key := fmt.Sprintf(cache.KeySeasonBoard, seasonID)
	return m.rdb.ZAdd(ctx, key, redis.Z{
		Score:  float64(sr),
		Member: userID,
	}).Err()
}

// MemberRank returns a member's 1-based position and SR for a season, or
// nil when the member is not on the board.
func (m *Mirror) MemberRank(ctx context.Context, seasonID, userID string) (*Entry, error) {
	key := fmt.Sprintf(cache.KeySeasonBoard, seasonID)

	rank, err := m.rdb.ZRevRank(ctx, key, userID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	score, err := m.rdb.ZScore(ctx, key, userID).Result()
	if err != nil {
		return nil, err
	}

	return &Entry{UserID: userID, SR: int(score), Rank: rank + 1}, nil
}

// Top returns the highest-SR members for a season.
func (m *Mirror) Top(ctx context.Context, seasonID string, count int64) ([]Entry, error) {
	key := fmt.Sprintf(cache.KeySeasonBoard, seasonID)
	results, err := m.rdb.ZRevRangeWithScores(ctx, key, 0, count-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(results))
	for i, z := range results {
		member, _ := z.Member.(string)
		entries = append(entries, Entry{
			UserID: member,
			SR:     int(z.Score),
			Rank:   int64(i + 1),
		})
	}
	return entries, nil
}

// ResetSeason drops the mirror for a season once it has been processed.
func (m *Mirror) ResetSeason(ctx context.Context, seasonID string) error {
	pipe := m.rdb.Pipeline()
	pipe.Del(ctx, fmt.Sprintf(cache.KeySeasonBoard, seasonID))
	pipe.Del(ctx, fmt.Sprintf(cache.KeyTeamBoard, seasonID))
	_, err := pipe.Exec(ctx)
	return err
}
