package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mind-engage/quizmaster/internal/localstore"
)

const (
	// SnapshotKey is where the in-progress attempt lives in the local store.
	SnapshotKey = "quiz_in_progress"
	// MaxSnapshotAge is how old a snapshot may be and still be offered for resume.
	MaxSnapshotAge = 24 * time.Hour
)

var errMalformedSnapshot = errors.New("malformed snapshot")

type Snapshot struct {
	QuizID        int64    `json:"quizId"`
	AttemptID     string   `json:"attemptId,omitempty"`
	CurrentIndex  int      `json:"currentIndex"`
	Answers       *Answers `json:"answers"`
	TimeRemaining int      `json:"timeRemaining"` // seconds
	Timestamp     int64    `json:"timestamp"`     // unix ms
}

func (s Snapshot) SavedAt() time.Time { return time.UnixMilli(s.Timestamp) }

// Stale reports whether the snapshot is older than MaxSnapshotAge at now.
func (s Snapshot) Stale(now time.Time) bool {
	return now.Sub(s.SavedAt()) > MaxSnapshotAge
}

func (s Snapshot) valid() bool {
	return s.QuizID > 0 && s.Timestamp > 0 && s.TimeRemaining >= 0 && s.CurrentIndex >= 0
}

func saveSnapshot(ctx context.Context, store localstore.Store, s Snapshot) error {
	if store == nil {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return store.Set(ctx, SnapshotKey, b)
}

// loadSnapshot returns localstore.ErrNotFound when nothing is saved and
// errMalformedSnapshot for undecodable or inconsistent data.
func loadSnapshot(ctx context.Context, store localstore.Store) (Snapshot, error) {
	if store == nil {
		return Snapshot{}, localstore.ErrNotFound
	}
	b, err := store.Get(ctx, SnapshotKey)
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil || !s.valid() {
		return Snapshot{}, errMalformedSnapshot
	}
	if s.Answers == nil {
		s.Answers = NewAnswers()
	}
	return s, nil
}

func clearSnapshot(ctx context.Context, store localstore.Store) error {
	if store == nil {
		return nil
	}
	return store.Delete(ctx, SnapshotKey)
}
