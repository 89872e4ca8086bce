package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quizmaster/internal/catalog"
)

func TestLoginStoresTokenAndSendsHeader(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "login successful", "token": "tok-1",
			"user": map[string]any{"id": 7, "email": "a@b.c", "role": "student"},
		})
	})
	r.Get("/api/quizzes", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authentication-Token") != "tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.Equal(t, "alg", r.URL.Query().Get("q"))
		_ = json.NewEncoder(w).Encode([]catalog.Quiz{{ID: 3, Name: "Algebra"}})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := New(srv.URL + "/")
	ctx := context.Background()

	_, err := c.Quizzes(ctx, catalog.QuizFilter{Q: "alg"})
	require.True(t, IsStatus(err, http.StatusUnauthorized))

	resp, err := c.Login(ctx, "a@b.c", "pw")
	require.NoError(t, err)
	require.Equal(t, "tok-1", c.Token())
	require.Equal(t, int64(7), resp.User.ID)

	qs, err := c.Quizzes(ctx, catalog.QuizFilter{Q: "alg"})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	require.Equal(t, "Algebra", qs[0].Name)
}

func TestAPIErrorCarriesFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid input","fields":{"name":"required"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).CreateSubject(context.Background(), catalog.Subject{})
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, http.StatusBadRequest, ae.Status)
	require.Equal(t, "invalid input", ae.Message)
	require.Equal(t, "required", ae.Fields["name"])
	require.False(t, errors.Is(err, ErrNetwork))
}

func TestPlainTextErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := New(srv.URL).DeleteQuiz(context.Background(), 1)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, "db not ready", ae.Message)
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).SubmitScore(context.Background(), ScoreRequest{QuizID: 1, TotalScored: 1})
	require.ErrorIs(t, err, ErrNetwork)
}

func TestSubmitScoreBody(t *testing.T) {
	at := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, "2030-01-02T03:04:05Z", got["time_stamp_of_attempt"])
		require.Equal(t, "att-9", got["attempt_id"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(catalog.Score{ID: 11, QuizID: 1, TotalScored: 2})
	}))
	defer srv.Close()

	sc, err := New(srv.URL, WithToken("t")).SubmitScore(context.Background(),
		ScoreRequest{QuizID: 1, AttemptID: "att-9", SubmittedAt: at, TotalScored: 2})
	require.NoError(t, err)
	require.Equal(t, int64(11), sc.ID)
}

func TestExportUsersStreams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("User ID,Name\n1,Ann\n"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	require.NoError(t, New(srv.URL).ExportUsers(context.Background(), &buf))
	require.Equal(t, "User ID,Name\n1,Ann\n", buf.String())
}
