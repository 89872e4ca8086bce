package events

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/quizmaster/internal/catalog"
)

// ScorePayload is the body of a ScoreSubmitted event.
type ScorePayload struct {
	ScoreID     int64     `json:"score_id"`
	QuizID      int64     `json:"quiz_id"`
	UserID      int64     `json:"user_id"`
	AttemptID   string    `json:"attempt_id"`
	TotalScored int       `json:"total_scored"`
	SubmittedAt time.Time `json:"time_stamp_of_attempt"`
}

// Recorder writes domain events to the log and, when a publisher is set,
// forwards them. The log is authoritative; publish errors are only logged.
type Recorder struct {
	log *Log
	pub Publisher
}

func NewRecorder(l *Log, pub Publisher) *Recorder { return &Recorder{log: l, pub: pub} }

func (r *Recorder) ScoreSubmitted(ctx context.Context, sc catalog.Score) error {
	key := sc.AttemptID
	if key == "" {
		key = uuid.NewString()
	}
	e, err := r.log.Append(ctx, TypeScoreSubmitted, key, ScorePayload{
		ScoreID:     sc.ID,
		QuizID:      sc.QuizID,
		UserID:      sc.UserID,
		AttemptID:   sc.AttemptID,
		TotalScored: sc.TotalScored,
		SubmittedAt: sc.SubmittedAt,
	})
	if err != nil {
		return err
	}
	if r.pub != nil {
		if err := r.pub.Publish(ctx, e); err != nil {
			log.Printf("events: publish %s seq=%d: %v", e.Type, e.Seq, err)
		}
	}
	return nil
}
