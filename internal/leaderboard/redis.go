package leaderboard

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Redis keeps one sorted set per quiz, member = user id, score = best score.
type Redis struct {
	Client *redis.Client
}

func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return &Redis{Client: rdb}, nil
}

// Record only ever raises a user's stored score.
func (r *Redis) Record(ctx context.Context, quizID, userID int64, score int) error {
	return r.Client.ZAddGT(ctx, key(quizID), redis.Z{
		Score:  float64(score),
		Member: strconv.FormatInt(userID, 10),
	}).Err()
}

// Load seeds the sets from entries, typically the SQLBoard view after a restart.
func (r *Redis) Load(ctx context.Context, quizID int64, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	pipe := r.Client.Pipeline()
	for _, e := range entries {
		pipe.ZAddGT(ctx, key(quizID), redis.Z{Score: float64(e.Score), Member: strconv.FormatInt(e.UserID, 10)})
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) Top(ctx context.Context, quizID int64, n int) ([]Entry, error) {
	if n <= 0 {
		n = 10
	}
	zs, err := r.Client.ZRevRangeWithScores(ctx, key(quizID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(zs))
	for i, z := range zs {
		uid, err := strconv.ParseInt(fmt.Sprintf("%v", z.Member), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Entry{Rank: i + 1, UserID: uid, Score: int(z.Score)})
	}
	return out, nil
}

func (r *Redis) Close() error { return r.Client.Close() }
