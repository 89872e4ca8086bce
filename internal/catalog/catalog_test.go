package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quizmaster/internal/db"
)

func openStore(t *testing.T) (*SQLStore, context.Context) {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	conn, err := db.Open(ctx, db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewSQLStore(conn, "sqlite"), ctx
}

func seedQuiz(t *testing.T, s *SQLStore, ctx context.Context) Quiz {
	t.Helper()
	sub := Subject{Name: "Maths"}
	require.NoError(t, s.CreateSubject(ctx, &sub))
	ch := Chapter{SubjectID: sub.ID, Name: "Arithmetic"}
	require.NoError(t, s.CreateChapter(ctx, &ch))
	qz := Quiz{
		ChapterID: ch.ID, Name: "Sums", Date: "2030-01-02", DurationMinutes: 5,
		Questions: []Question{
			{Statement: "1+1", Option1: "2", Option2: "3", CorrectOption: "2"},
			{Statement: "2+2", Option1: "5", Option2: "4", CorrectOption: "4"},
		},
	}
	require.NoError(t, s.CreateQuiz(ctx, &qz))
	return qz
}

func TestQuizExpired(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	q := Quiz{Date: "2024-05-10"}

	require.False(t, q.Expired(time.Date(2024, 5, 10, 0, 0, 0, 0, loc)))
	require.False(t, q.Expired(time.Date(2024, 5, 10, 23, 59, 59, 0, loc)))
	require.True(t, q.Expired(time.Date(2024, 5, 11, 0, 0, 0, 0, loc)))
	require.False(t, q.Expired(time.Date(2024, 5, 9, 12, 0, 0, 0, loc)))

	require.False(t, Quiz{}.Expired(time.Now()), "unscheduled quizzes stay open")
	require.Equal(t, 90*time.Second, Quiz{DurationMinutes: 1}.Duration()+30*time.Second)
}

func TestValidateQuestion(t *testing.T) {
	err := ValidateQuestion(Question{QuizID: 1, Statement: "s", Option1: "a", Option2: "b", CorrectOption: "c"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Contains(t, ve.Fields, "correct_answer")

	err = ValidateQuestion(Question{QuizID: 1, Statement: "s", Option1: "a", Option2: "a", CorrectOption: "a"})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "duplicate option text", ve.Fields["option2"])

	require.NoError(t, ValidateQuestion(Question{QuizID: 1, Statement: "s", Option1: "a", Option2: "b", CorrectOption: "b"}))
}

func TestValidateQuizInlineQuestions(t *testing.T) {
	err := ValidateQuiz(Quiz{
		ChapterID: 1, Name: "q", Date: "2024-13-01", DurationMinutes: 0,
		Questions: []Question{{Statement: "", Option1: "a", Option2: "b", CorrectOption: "a"}},
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "expected YYYY-MM-DD", ve.Fields["date_of_quiz"])
	require.Contains(t, ve.Fields, "time_duration")
	require.Equal(t, "required", ve.Fields["questions[0].question_statement"])
}

func TestSQLStoreCatalog(t *testing.T) {
	s, ctx := openStore(t)
	qz := seedQuiz(t, s, ctx)
	require.NotZero(t, qz.ID)
	require.Len(t, qz.Questions, 2)

	got, err := s.GetQuiz(ctx, qz.ID)
	require.NoError(t, err)
	require.Equal(t, "Sums", got.Name)
	require.Equal(t, []string{"1+1", "2+2"}, []string{got.Questions[0].Statement, got.Questions[1].Statement})

	subs, err := s.ListSubjects(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Len(t, subs[0].Chapters, 1)

	list, err := s.ListQuizzes(ctx, QuizFilter{Q: "SUM"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Questions, 2)

	list, err = s.ListQuizzes(ctx, QuizFilter{Q: "history"})
	require.NoError(t, err)
	require.Empty(t, list)

	q3 := Question{QuizID: qz.ID, Statement: "3+3", Option1: "6", Option2: "7", CorrectOption: "6"}
	require.NoError(t, s.CreateQuestion(ctx, &q3))
	got, err = s.GetQuiz(ctx, qz.ID)
	require.NoError(t, err)
	require.Len(t, got.Questions, 3)
	require.Equal(t, q3.ID, got.Questions[2].ID)

	_, err = s.GetQuiz(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.DeleteSubject(ctx, 999), ErrNotFound)
}

func TestSQLStoreCreateChapterUnknownSubject(t *testing.T) {
	s, ctx := openStore(t)
	err := s.CreateChapter(ctx, &Chapter{SubjectID: 42, Name: "x"})
	require.ErrorIs(t, err, ErrNotFound)
}

func addUser(t *testing.T, s *SQLStore, ctx context.Context, email string) int64 {
	t.Helper()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (email,password_hash,role,active,created_at) VALUES ($1,'x','student',TRUE,0) RETURNING id`,
		email).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestRecordScoreIdempotentAndLocks(t *testing.T) {
	s, ctx := openStore(t)
	qz := seedQuiz(t, s, ctx)
	uid := addUser(t, s, ctx, "a@example.com")

	sc := Score{QuizID: qz.ID, UserID: uid, AttemptID: "att-1", TotalScored: 2}
	created, err := s.RecordScore(ctx, &sc)
	require.NoError(t, err)
	require.True(t, created)
	firstID := sc.ID

	dup := Score{QuizID: qz.ID, UserID: uid, AttemptID: "att-1", TotalScored: 0}
	created, err = s.RecordScore(ctx, &dup)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, firstID, dup.ID)
	require.Equal(t, 2, dup.TotalScored)

	// no attempt id: always a new row
	plain := Score{QuizID: qz.ID, UserID: uid, TotalScored: 1}
	created, err = s.RecordScore(ctx, &plain)
	require.NoError(t, err)
	require.True(t, created)

	scores, err := s.ListScores(ctx, ScoreFilter{UserID: uid})
	require.NoError(t, err)
	require.Len(t, scores, 2)

	qz.Name = "Renamed"
	err = s.UpdateQuiz(ctx, qz)
	require.True(t, errors.Is(err, ErrQuizLocked))
	err = s.DeleteQuestion(ctx, qz.Questions[0].ID)
	require.ErrorIs(t, err, ErrQuizLocked)
}
