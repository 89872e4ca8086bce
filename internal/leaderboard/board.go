package leaderboard

import (
	"context"
	"database/sql"
	"strconv"
)

// Entry is one user's best score on a quiz. Rank starts at 1.
type Entry struct {
	Rank   int   `json:"rank"`
	UserID int64 `json:"user_id"`
	Score  int   `json:"score"`
}

// Board keeps the best score per user per quiz.
type Board interface {
	Record(ctx context.Context, quizID, userID int64, score int) error
	Top(ctx context.Context, quizID int64, n int) ([]Entry, error)
}

// SQLBoard answers from the scores table; Record is a no-op because the score
// row is already the source of truth.
type SQLBoard struct{ db *sql.DB }

func NewSQLBoard(db *sql.DB) *SQLBoard { return &SQLBoard{db: db} }

func (b *SQLBoard) Record(context.Context, int64, int64, int) error { return nil }

func (b *SQLBoard) Top(ctx context.Context, quizID int64, n int) ([]Entry, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT user_id, MAX(total_scored) AS best FROM scores WHERE quiz_id=$1
		 GROUP BY user_id ORDER BY best DESC, user_id ASC LIMIT $2`, quizID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.Score); err != nil {
			return nil, err
		}
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, rows.Err()
}

func key(quizID int64) string { return "leaderboard:" + strconv.FormatInt(quizID, 10) }
