package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mind-engage/quizmaster/internal/catalog"
	"github.com/mind-engage/quizmaster/internal/localstore"
)

// Offer is a saved attempt that may be resumed.
type Offer struct {
	Quiz     catalog.Quiz
	Snapshot Snapshot
	Age      time.Duration
}

type Resumer struct {
	store localstore.Store
	now   func() time.Time
}

func NewResumer(store localstore.Store, now func() time.Time) *Resumer {
	if now == nil {
		now = time.Now
	}
	return &Resumer{store: store, now: now}
}

// Check looks for a saved attempt against quizzes. It returns nil when there
// is nothing to offer; malformed, stale, or orphaned snapshots are deleted
// without an offer.
func (r *Resumer) Check(ctx context.Context, quizzes []catalog.Quiz) (*Offer, error) {
	snap, err := loadSnapshot(ctx, r.store)
	switch {
	case errors.Is(err, localstore.ErrNotFound):
		return nil, nil
	case errors.Is(err, errMalformedSnapshot):
		return nil, r.drop(ctx, "malformed")
	case err != nil:
		return nil, err
	}

	now := r.now()
	if snap.Stale(now) {
		return nil, r.drop(ctx, "stale")
	}
	for _, q := range quizzes {
		if q.ID == snap.QuizID {
			return &Offer{Quiz: q, Snapshot: snap, Age: now.Sub(snap.SavedAt())}, nil
		}
	}
	return nil, r.drop(ctx, "unknown quiz")
}

// Discard clears the saved attempt.
func (r *Resumer) Discard(ctx context.Context) error {
	return clearSnapshot(ctx, r.store)
}

func (r *Resumer) drop(ctx context.Context, why string) error {
	log.Printf("session: discarding saved attempt (%s)", why)
	return clearSnapshot(ctx, r.store)
}
