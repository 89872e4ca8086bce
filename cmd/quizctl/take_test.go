package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quizmaster/internal/appstate"
	"github.com/mind-engage/quizmaster/internal/catalog"
	"github.com/mind-engage/quizmaster/internal/client"
	"github.com/mind-engage/quizmaster/internal/localstore"
	"github.com/mind-engage/quizmaster/internal/notify"
	"github.com/mind-engage/quizmaster/internal/session"
)

type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}

func noTicks(time.Duration) session.Ticker { return idleTicker{} }

func openQuiz() catalog.Quiz {
	return catalog.Quiz{ID: 4, Name: "Fractions", Date: "2099-01-01", DurationMinutes: 1, Questions: []catalog.Question{
		{ID: 1, Statement: "1/2+1/2", Option1: "1", Option2: "2", CorrectOption: "1"},
		{ID: 2, Statement: "1/2*2", Option1: "1", Option2: "1/4", CorrectOption: "1"},
	}}
}

// newTestApp wires an app to a server built by routes.
func newTestApp(t *testing.T, routes func(r chi.Router)) *app {
	t.Helper()
	r := chi.NewRouter()
	routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	st, err := appstate.Load(context.Background(), nil)
	require.NoError(t, err)
	notes := notify.New(nil)
	inbox, cancel := notes.Subscribe(16)
	t.Cleanup(cancel)
	return &app{
		api:   client.New(srv.URL, client.WithToken("tok")),
		state: st,
		kv:    localstore.NewMemory(),
		notes: notes,
		inbox: inbox,
		out:   &bytes.Buffer{},
	}
}

func scoreStatus(status int, msg string) func(r chi.Router) {
	return func(r chi.Router) {
		r.Post("/api/scores", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
		})
	}
}

func TestServerExpiryEndsAttempt(t *testing.T) {
	a := newTestApp(t, scoreStatus(http.StatusConflict, quizExpiredMsg))
	ctx := context.Background()
	ctrl := session.NewController(a.backend(), session.WithStore(a.kv), session.WithTicker(noTicks))
	require.NoError(t, ctrl.Start(ctx, openQuiz()))
	require.NoError(t, ctrl.SelectAnswer(ctx, "1"))

	_, err := ctrl.Submit(ctx, session.ReasonManual)
	require.ErrorIs(t, err, session.ErrExpired)
	require.Equal(t, session.StatusExpired, ctrl.Status())
	_, err = a.kv.Get(ctx, session.SnapshotKey)
	require.ErrorIs(t, err, localstore.ErrNotFound)

	_, err = ctrl.Submit(ctx, session.ReasonManual)
	require.ErrorIs(t, err, session.ErrNoActiveAttempt)
	require.EqualError(t, a.finished(ctrl, session.Result{}, session.ErrExpired), "the quiz expired before it was submitted")
}

func TestOtherConflictStaysRetryable(t *testing.T) {
	a := newTestApp(t, scoreStatus(http.StatusConflict, "attempt already scored"))
	ctx := context.Background()
	ctrl := session.NewController(a.backend(), session.WithStore(a.kv), session.WithTicker(noTicks))
	require.NoError(t, ctrl.Start(ctx, openQuiz()))

	_, err := ctrl.Submit(ctx, session.ReasonManual)
	require.True(t, client.IsStatus(err, http.StatusConflict))
	require.NotErrorIs(t, err, session.ErrExpired)
	require.Equal(t, session.StatusRetry, ctrl.Status())
	_, err = a.kv.Get(ctx, session.SnapshotKey)
	require.NoError(t, err)
}

// saveAttempt leaves a snapshot of q in a's store, as quitting a take does.
func saveAttempt(t *testing.T, a *app, q catalog.Quiz) {
	t.Helper()
	ctx := context.Background()
	ctrl := session.NewController(a.backend(), session.WithStore(a.kv), session.WithTicker(noTicks))
	require.NoError(t, ctrl.Start(ctx, q))
	require.NoError(t, ctrl.Close(ctx))
}

func TestResumeAutoSubmitFailureWarnsOnce(t *testing.T) {
	a := newTestApp(t, scoreStatus(http.StatusInternalServerError, "db down"))
	quiz := openQuiz()
	saveAttempt(t, a, quiz)

	ctx := context.Background()
	later := time.Now().Add(time.Hour)
	ctrl := session.NewController(a.backend(),
		session.WithStore(a.kv),
		session.WithTicker(noTicks),
		session.WithResumePolicy(session.ResumeDeduct),
		session.WithClock(func() time.Time { return later }),
	)
	in := make(chan string, 1)
	in <- "y"

	resumed, err := a.offerResume(ctx, ctrl, []catalog.Quiz{quiz}, 0, in)
	require.NoError(t, err)
	require.True(t, resumed)
	require.Equal(t, session.StatusRetry, ctrl.Status())
	for _, n := range a.notes.Active() {
		require.NotEqual(t, notify.Warning, n.Level, n.Message)
	}
}

func TestQuizzesHintsAtSavedAttempt(t *testing.T) {
	quiz := openQuiz()
	other := catalog.Quiz{ID: 9, Name: "Decimals", Date: "2099-01-01", DurationMinutes: 5}
	a := newTestApp(t, func(r chi.Router) {
		r.Get("/api/quizzes", func(w http.ResponseWriter, r *http.Request) {
			qs := []catalog.Quiz{quiz, other}
			if r.URL.Query().Get("q") != "" {
				qs = qs[1:]
			}
			_ = json.NewEncoder(w).Encode(qs)
		})
	})
	saveAttempt(t, a, quiz)
	ctx := context.Background()

	// the filtered list leaves the saved quiz out, and the snapshot must survive it
	require.NoError(t, a.quizzes(ctx, []string{"dec"}))
	out := a.out.(*bytes.Buffer)
	require.Contains(t, out.String(), `Saved attempt for "Fractions" (01:00 left); run quizctl take 4 to resume.`)
	_, err := a.kv.Get(ctx, session.SnapshotKey)
	require.NoError(t, err)
	require.Equal(t, "dec", a.state.State().SearchQuery)

	out.Reset()
	require.NoError(t, a.kv.Delete(ctx, session.SnapshotKey))
	require.NoError(t, a.quizzes(ctx, nil))
	require.NotContains(t, out.String(), "Saved attempt")
	require.Empty(t, a.state.State().SearchQuery)
}
