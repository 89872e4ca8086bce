package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quizmaster/internal/catalog"
	"github.com/mind-engage/quizmaster/internal/localstore"
)

func savedAt(t *testing.T, store localstore.Store, at time.Time, remaining int) {
	t.Helper()
	a := NewAnswers()
	a.Set(1, "B")
	a.Set(0, "B")
	require.NoError(t, saveSnapshot(context.Background(), store, Snapshot{
		QuizID: 7, AttemptID: "att-7", CurrentIndex: 1, Answers: a,
		TimeRemaining: remaining, Timestamp: at.UnixMilli(),
	}))
}

func TestResumeWithinWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	savedAt(t, h.store, day.Add(-23*time.Hour), 42)

	r := NewResumer(h.store, h.clock.Now)
	offer, err := r.Check(ctx, []catalog.Quiz{twoQuestionQuiz(1)})
	require.NoError(t, err)
	require.NotNil(t, offer)
	require.Equal(t, 23*time.Hour, offer.Age)

	require.NoError(t, h.c.Resume(ctx, *offer))
	v := h.c.View()
	require.Equal(t, StatusActive, v.Status)
	require.Equal(t, 42, v.Remaining, "paused time is restored as saved")
	require.Equal(t, 1, v.Index)
	require.Equal(t, "att-7", v.AttemptID)
	require.Equal(t, []int{1, 0}, h.c.Answers().Indices())
	b, _ := h.c.Answers().Get(1)
	require.Equal(t, "B", b)

	res, err := h.c.Submit(ctx, ReasonManual)
	require.NoError(t, err)
	require.Equal(t, 1, res.Score)
	require.Equal(t, "att-7", h.backend.Calls()[0].AttemptID)
}

func TestResumeStaleSnapshotDiscarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	savedAt(t, h.store, day.Add(-25*time.Hour), 42)

	offer, err := NewResumer(h.store, h.clock.Now).Check(ctx, []catalog.Quiz{twoQuestionQuiz(1)})
	require.NoError(t, err)
	require.Nil(t, offer)
	_, ok := h.snapshot(t)
	require.False(t, ok)
}

func TestResumeExactlyAtWindowEdge(t *testing.T) {
	h := newHarness(t)
	savedAt(t, h.store, day.Add(-MaxSnapshotAge), 42)
	offer, err := NewResumer(h.store, h.clock.Now).Check(context.Background(), []catalog.Quiz{twoQuestionQuiz(1)})
	require.NoError(t, err)
	require.NotNil(t, offer)
}

func TestResumeMalformedOrOrphaned(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.store.Set(ctx, SnapshotKey, []byte(`{"quizId":`)))
		offer, err := NewResumer(h.store, h.clock.Now).Check(ctx, []catalog.Quiz{twoQuestionQuiz(1)})
		require.NoError(t, err)
		require.Nil(t, offer)
		_, err = h.store.Get(ctx, SnapshotKey)
		require.ErrorIs(t, err, localstore.ErrNotFound)
	})

	t.Run("missing quiz", func(t *testing.T) {
		h := newHarness(t)
		savedAt(t, h.store, day.Add(-time.Hour), 42)
		other := twoQuestionQuiz(1)
		other.ID = 99
		offer, err := NewResumer(h.store, h.clock.Now).Check(ctx, []catalog.Quiz{other})
		require.NoError(t, err)
		require.Nil(t, offer)
		_, ok := h.snapshot(t)
		require.False(t, ok)
	})

	t.Run("nothing saved", func(t *testing.T) {
		h := newHarness(t)
		offer, err := NewResumer(h.store, h.clock.Now).Check(ctx, nil)
		require.NoError(t, err)
		require.Nil(t, offer)
	})
}

func TestResumeDiscard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	savedAt(t, h.store, day.Add(-time.Hour), 42)
	r := NewResumer(h.store, h.clock.Now)
	require.NoError(t, r.Discard(ctx))
	offer, err := r.Check(ctx, []catalog.Quiz{twoQuestionQuiz(1)})
	require.NoError(t, err)
	require.Nil(t, offer)
}

func TestResumeDeductPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("time left", func(t *testing.T) {
		h := newHarness(t, WithResumePolicy(ResumeDeduct))
		savedAt(t, h.store, day.Add(-30*time.Second), 42)
		offer, err := NewResumer(h.store, h.clock.Now).Check(ctx, []catalog.Quiz{twoQuestionQuiz(1)})
		require.NoError(t, err)
		require.NoError(t, h.c.Resume(ctx, *offer))
		require.Equal(t, 12, h.c.Remaining())
	})

	t.Run("ran out while away", func(t *testing.T) {
		got := make(chan Result, 1)
		h := newHarness(t, WithResumePolicy(ResumeDeduct), WithAutoSubmitHook(func(r Result, _ error) { got <- r }))
		savedAt(t, h.store, day.Add(-time.Hour), 42)
		offer, err := NewResumer(h.store, h.clock.Now).Check(ctx, []catalog.Quiz{twoQuestionQuiz(1)})
		require.NoError(t, err)
		require.NoError(t, h.c.Resume(ctx, *offer))
		r := <-got
		require.Equal(t, ReasonTimeout, r.Reason)
		require.Equal(t, StatusSubmitted, h.c.Status())
		require.Len(t, h.backend.Calls(), 1)
	})
}

func TestResumeExpiredQuiz(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	savedAt(t, h.store, day.Add(-time.Hour), 42)
	q := twoQuestionQuiz(1)
	q.Date = "2030-01-01"
	offer, err := NewResumer(h.store, h.clock.Now).Check(ctx, []catalog.Quiz{q})
	require.NoError(t, err)
	require.ErrorIs(t, h.c.Resume(ctx, *offer), ErrExpired)
	_, ok := h.snapshot(t)
	require.False(t, ok)
}
