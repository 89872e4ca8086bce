package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authmw "github.com/mind-engage/quizmaster/internal/auth/middleware"
	"github.com/mind-engage/quizmaster/internal/catalog"
	"github.com/mind-engage/quizmaster/internal/db"
	"github.com/mind-engage/quizmaster/internal/leaderboard"
)

type recordedSink struct{ got []catalog.Score }

func (s *recordedSink) ScoreSubmitted(_ context.Context, sc catalog.Score) error {
	s.got = append(s.got, sc)
	return nil
}

type testServer struct {
	srv  *httptest.Server
	db   *sql.DB
	sink *recordedSink
	now  time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared&_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("adminpw"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.EnsureAdmin(ctx, dbh, "admin@x.io", string(hash)))

	ts := &testServer{db: dbh, sink: &recordedSink{}, now: time.Date(2030, 1, 2, 12, 0, 0, 0, time.UTC)}
	r := chi.NewRouter()
	Mount(r, Deps{
		DB:                 dbh,
		Store:              catalog.NewSQLStore(dbh, "sqlite"),
		Auth:               authmw.NewAuthService("test-secret", time.Hour),
		Board:              leaderboard.NewSQLBoard(dbh),
		Events:             ts.sink,
		EnableRegistration: true,
		Now:                func() time.Time { return ts.now },
	})
	ts.srv = httptest.NewServer(r)
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) call(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := nethttp.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(authmw.TokenHeader, token)
	}
	resp, err := nethttp.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func (ts *testServer) login(t *testing.T, email, pw string) string {
	t.Helper()
	code, body := ts.call(t, nethttp.MethodPost, "/", "", map[string]string{"email": email, "password": pw})
	require.Equal(t, nethttp.StatusOK, code, string(body))
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Token
}

func (ts *testServer) seedCatalog(t *testing.T, admin string, date string) catalog.Quiz {
	t.Helper()
	code, body := ts.call(t, nethttp.MethodPost, "/api/subjects", admin, map[string]string{"name": "Maths"})
	require.Equal(t, nethttp.StatusCreated, code, string(body))
	var sub catalog.Subject
	require.NoError(t, json.Unmarshal(body, &sub))

	code, body = ts.call(t, nethttp.MethodPost, "/api/chapters", admin, map[string]any{"subject_id": sub.ID, "name": "Algebra"})
	require.Equal(t, nethttp.StatusCreated, code, string(body))
	var ch catalog.Chapter
	require.NoError(t, json.Unmarshal(body, &ch))

	code, body = ts.call(t, nethttp.MethodPost, "/api/quizzes", admin, map[string]any{
		"chapter_id": ch.ID, "name": "Linear", "date_of_quiz": date, "time_duration": 10,
		"questions": []map[string]string{
			{"question_statement": "x+1=2", "option1": "1", "option2": "2", "correct_answer": "1"},
			{"question_statement": "2x=4", "option1": "2", "option2": "4", "correct_answer": "2"},
		},
	})
	require.Equal(t, nethttp.StatusCreated, code, string(body))
	var q catalog.Quiz
	require.NoError(t, json.Unmarshal(body, &q))
	return q
}

func registerStudent(t *testing.T, ts *testServer, email string) string {
	t.Helper()
	code, body := ts.call(t, nethttp.MethodPost, "/register", "", map[string]string{
		"email": email, "password": "secret1", "full_name": "Stu",
	})
	require.Equal(t, nethttp.StatusCreated, code, string(body))
	return ts.login(t, email, "secret1")
}

func TestCatalogAndScoreFlow(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login(t, "admin@x.io", "adminpw")
	quiz := ts.seedCatalog(t, admin, "2030-01-02")
	require.Len(t, quiz.Questions, 2)

	stud := registerStudent(t, ts, "stu@x.io")

	code, body := ts.call(t, nethttp.MethodGet, "/api/quizzes?q=lin", stud, nil)
	require.Equal(t, nethttp.StatusOK, code)
	var quizzes []catalog.Quiz
	require.NoError(t, json.Unmarshal(body, &quizzes))
	require.Len(t, quizzes, 1)
	require.Equal(t, "1", quizzes[0].Questions[0].CorrectOption)

	code, _ = ts.call(t, nethttp.MethodGet, "/api/subjects", stud, nil)
	require.Equal(t, nethttp.StatusOK, code)

	// students cannot manage the catalog
	code, _ = ts.call(t, nethttp.MethodPost, "/api/subjects", stud, map[string]string{"name": "Nope"})
	require.Equal(t, nethttp.StatusForbidden, code)

	score := map[string]any{"quiz_id": quiz.ID, "total_scored": 1, "attempt_id": "att-1",
		"time_stamp_of_attempt": ts.now.Format(time.RFC3339)}
	code, body = ts.call(t, nethttp.MethodPost, "/api/scores", stud, score)
	require.Equal(t, nethttp.StatusCreated, code, string(body))
	var first catalog.Score
	require.NoError(t, json.Unmarshal(body, &first))
	require.Equal(t, 1, first.TotalScored)

	code, body = ts.call(t, nethttp.MethodPost, "/api/scores", stud, score)
	require.Equal(t, nethttp.StatusOK, code, "replay is idempotent")
	var replay catalog.Score
	require.NoError(t, json.Unmarshal(body, &replay))
	require.Equal(t, first.ID, replay.ID)
	require.Len(t, ts.sink.got, 1)

	code, body = ts.call(t, nethttp.MethodGet, "/api/scores", stud, nil)
	require.Equal(t, nethttp.StatusOK, code)
	var mine []catalog.Score
	require.NoError(t, json.Unmarshal(body, &mine))
	require.Len(t, mine, 1)

	code, body = ts.call(t, nethttp.MethodGet, "/api/quizzes/"+itoa(quiz.ID)+"/leaderboard", stud, nil)
	require.Equal(t, nethttp.StatusOK, code)
	var top []leaderboard.Entry
	require.NoError(t, json.Unmarshal(body, &top))
	require.Len(t, top, 1)
	require.Equal(t, first.UserID, top[0].UserID)

	// attempted quizzes are locked for editing
	code, _ = ts.call(t, nethttp.MethodPut, "/api/quizzes/"+itoa(quiz.ID), admin, map[string]any{
		"chapter_id": quiz.ChapterID, "name": "Renamed", "date_of_quiz": "2030-01-02", "time_duration": 10,
	})
	require.Equal(t, nethttp.StatusConflict, code)

	code, body = ts.call(t, nethttp.MethodGet, "/api/summary/user", stud, nil)
	require.Equal(t, nethttp.StatusOK, code)
	require.Contains(t, string(body), `"subject_attempts":{"labels":["Maths"],"values":[1]}`)

	code, _ = ts.call(t, nethttp.MethodGet, "/api/summary/admin", stud, nil)
	require.Equal(t, nethttp.StatusForbidden, code)
	code, _ = ts.call(t, nethttp.MethodGet, "/api/summary/admin", admin, nil)
	require.Equal(t, nethttp.StatusOK, code)

	code, _ = ts.call(t, nethttp.MethodGet, "/api/events", stud, nil)
	require.Equal(t, nethttp.StatusForbidden, code)
	code, body = ts.call(t, nethttp.MethodGet, "/api/events?after=0", admin, nil)
	require.Equal(t, nethttp.StatusOK, code)
	require.JSONEq(t, `[]`, string(body), "scores went to the test sink, not the log")

	code, body = ts.call(t, nethttp.MethodGet, "/api/export/users", admin, nil)
	require.Equal(t, nethttp.StatusOK, code)
	require.True(t, strings.HasPrefix(string(body), "User ID,Name,Email"))
	require.Contains(t, string(body), "stu@x.io")
}

func TestSubmitScoreExpiredAndInvalid(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login(t, "admin@x.io", "adminpw")
	quiz := ts.seedCatalog(t, admin, "2030-01-01") // the day before ts.now
	stud := registerStudent(t, ts, "late@x.io")

	code, body := ts.call(t, nethttp.MethodPost, "/api/scores", stud, map[string]any{"quiz_id": quiz.ID, "total_scored": 1})
	require.Equal(t, nethttp.StatusConflict, code, string(body))
	require.Empty(t, ts.sink.got)

	code, body = ts.call(t, nethttp.MethodPost, "/api/scores", stud, map[string]any{"quiz_id": quiz.ID})
	require.Equal(t, nethttp.StatusBadRequest, code)
	var e errorResp
	require.NoError(t, json.Unmarshal(body, &e))
	require.Equal(t, "required", e.Fields["total_scored"])

	code, _ = ts.call(t, nethttp.MethodPost, "/api/scores", stud, map[string]any{"quiz_id": 999, "total_scored": 0})
	require.Equal(t, nethttp.StatusNotFound, code)
}

func TestQuestionValidationIsPerField(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login(t, "admin@x.io", "adminpw")
	quiz := ts.seedCatalog(t, admin, "2030-01-02")

	code, body := ts.call(t, nethttp.MethodPost, "/api/questions", admin, map[string]any{
		"quiz_id": quiz.ID, "question_statement": "dup", "option1": "a", "option2": "a", "correct_answer": "a",
	})
	require.Equal(t, nethttp.StatusBadRequest, code)
	var e errorResp
	require.NoError(t, json.Unmarshal(body, &e))
	require.Equal(t, "duplicate option text", e.Fields["option2"])

	code, body = ts.call(t, nethttp.MethodGet, "/api/quizzes/"+itoa(quiz.ID), admin, nil)
	require.Equal(t, nethttp.StatusOK, code)
	var got catalog.Quiz
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.Questions, 2, "nothing partial was written")
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	code, _ := ts.call(t, nethttp.MethodGet, "/api/quizzes", "", nil)
	require.Equal(t, nethttp.StatusUnauthorized, code)
	code, _ = ts.call(t, nethttp.MethodGet, "/api/quizzes", "garbage", nil)
	require.Equal(t, nethttp.StatusUnauthorized, code)

	code, _ = ts.call(t, nethttp.MethodGet, "/healthz", "", nil)
	require.Equal(t, nethttp.StatusOK, code)
	code, _ = ts.call(t, nethttp.MethodGet, "/readyz", "", nil)
	require.Equal(t, nethttp.StatusOK, code)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
