package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SQLStore works against both sqlite (modernc) and postgres (pgx stdlib).
// Rows are always drained and closed before the next statement runs; the
// sqlite handle is limited to one connection.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// ---- subjects ----

func (s *SQLStore) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,description FROM subjects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	out := []Subject{}
	idx := map[int64]int{}
	for rows.Next() {
		var sub Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Description); err != nil {
			rows.Close()
			return nil, err
		}
		sub.Chapters = []Chapter{}
		idx[sub.ID] = len(out)
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	chapters, err := s.ListChapters(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, c := range chapters {
		if i, ok := idx[c.SubjectID]; ok {
			out[i].Chapters = append(out[i].Chapters, c)
		}
	}
	return out, nil
}

func (s *SQLStore) GetSubject(ctx context.Context, id int64) (Subject, error) {
	var sub Subject
	err := s.db.QueryRowContext(ctx, `SELECT id,name,description FROM subjects WHERE id=$1`, id).
		Scan(&sub.ID, &sub.Name, &sub.Description)
	if err != nil {
		return Subject{}, notFound(err, "subject")
	}
	sub.Chapters, err = s.ListChapters(ctx, id)
	return sub, err
}

func (s *SQLStore) CreateSubject(ctx context.Context, sub *Subject) error {
	if err := ValidateSubject(*sub); err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx,
		`INSERT INTO subjects (name,description) VALUES ($1,$2) RETURNING id`,
		strings.TrimSpace(sub.Name), sub.Description).Scan(&sub.ID)
}

func (s *SQLStore) UpdateSubject(ctx context.Context, sub Subject) error {
	if err := ValidateSubject(sub); err != nil {
		return err
	}
	return mustAffect(s.db.ExecContext(ctx,
		`UPDATE subjects SET name=$1, description=$2 WHERE id=$3`,
		strings.TrimSpace(sub.Name), sub.Description, sub.ID))
}

func (s *SQLStore) DeleteSubject(ctx context.Context, id int64) error {
	return mustAffect(s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id=$1`, id))
}

// ---- chapters ----

func (s *SQLStore) ListChapters(ctx context.Context, subjectID int64) ([]Chapter, error) {
	q := `SELECT id,subject_id,name,description FROM chapters`
	var args []any
	if subjectID > 0 {
		q += ` WHERE subject_id=$1`
		args = append(args, subjectID)
	}
	q += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Chapter{}
	for rows.Next() {
		var c Chapter
		if err := rows.Scan(&c.ID, &c.SubjectID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetChapter(ctx context.Context, id int64) (Chapter, error) {
	var c Chapter
	err := s.db.QueryRowContext(ctx, `SELECT id,subject_id,name,description FROM chapters WHERE id=$1`, id).
		Scan(&c.ID, &c.SubjectID, &c.Name, &c.Description)
	if err != nil {
		return Chapter{}, notFound(err, "chapter")
	}
	return c, nil
}

func (s *SQLStore) CreateChapter(ctx context.Context, c *Chapter) error {
	if err := ValidateChapter(*c); err != nil {
		return err
	}
	if _, err := s.GetSubject(ctx, c.SubjectID); err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx,
		`INSERT INTO chapters (subject_id,name,description) VALUES ($1,$2,$3) RETURNING id`,
		c.SubjectID, strings.TrimSpace(c.Name), c.Description).Scan(&c.ID)
}

func (s *SQLStore) UpdateChapter(ctx context.Context, c Chapter) error {
	if err := ValidateChapter(c); err != nil {
		return err
	}
	return mustAffect(s.db.ExecContext(ctx,
		`UPDATE chapters SET subject_id=$1, name=$2, description=$3 WHERE id=$4`,
		c.SubjectID, strings.TrimSpace(c.Name), c.Description, c.ID))
}

func (s *SQLStore) DeleteChapter(ctx context.Context, id int64) error {
	return mustAffect(s.db.ExecContext(ctx, `DELETE FROM chapters WHERE id=$1`, id))
}

// ---- quizzes ----

func (s *SQLStore) ListQuizzes(ctx context.Context, f QuizFilter) ([]Quiz, error) {
	q := `SELECT id,chapter_id,name,date_of_quiz,time_duration,remarks FROM quizzes WHERE 1=1`
	var args []any
	if f.ChapterID > 0 {
		args = append(args, f.ChapterID)
		q += ` AND chapter_id=$` + strconv.Itoa(len(args))
	}
	if qs := strings.TrimSpace(f.Q); qs != "" {
		args = append(args, strings.ToLower(qs))
		q += ` AND LOWER(name) LIKE '%' || $` + strconv.Itoa(len(args)) + ` || '%'`
	}
	q += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	out := []Quiz{}
	for rows.Next() {
		var qz Quiz
		if err := rows.Scan(&qz.ID, &qz.ChapterID, &qz.Name, &qz.Date, &qz.DurationMinutes, &qz.Remarks); err != nil {
			rows.Close()
			return nil, err
		}
		qz.Questions = []Question{}
		out = append(out, qz)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(out) == 0 {
		return out, nil
	}
	ids := make([]int64, len(out))
	pos := make(map[int64]int, len(out))
	for i, qz := range out {
		ids[i] = qz.ID
		pos[qz.ID] = i
	}
	questions, err := s.questionsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, qq := range questions {
		i := pos[qq.QuizID]
		out[i].Questions = append(out[i].Questions, qq)
	}
	return out, nil
}

func (s *SQLStore) questionsFor(ctx context.Context, quizIDs []int64) ([]Question, error) {
	ph := make([]string, len(quizIDs))
	args := make([]any, len(quizIDs))
	for i, id := range quizIDs {
		ph[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,quiz_id,statement,option1,option2,correct_option FROM questions
		 WHERE quiz_id IN (`+strings.Join(ph, ",")+`) ORDER BY quiz_id, position, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Statement, &q.Option1, &q.Option2, &q.CorrectOption); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetQuiz(ctx context.Context, id int64) (Quiz, error) {
	var qz Quiz
	err := s.db.QueryRowContext(ctx,
		`SELECT id,chapter_id,name,date_of_quiz,time_duration,remarks FROM quizzes WHERE id=$1`, id).
		Scan(&qz.ID, &qz.ChapterID, &qz.Name, &qz.Date, &qz.DurationMinutes, &qz.Remarks)
	if err != nil {
		return Quiz{}, notFound(err, "quiz")
	}
	qs, err := s.questionsFor(ctx, []int64{id})
	if err != nil {
		return Quiz{}, err
	}
	qz.Questions = append([]Question{}, qs...)
	return qz, nil
}

func (s *SQLStore) CreateQuiz(ctx context.Context, qz *Quiz) (err error) {
	if err := ValidateQuiz(*qz); err != nil {
		return err
	}
	if _, err := s.GetChapter(ctx, qz.ChapterID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO quizzes (chapter_id,name,date_of_quiz,time_duration,remarks,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		qz.ChapterID, strings.TrimSpace(qz.Name), qz.Date, qz.DurationMinutes, qz.Remarks, time.Now().Unix()).Scan(&qz.ID)
	if err != nil {
		return err
	}
	for i := range qz.Questions {
		q := &qz.Questions[i]
		q.QuizID = qz.ID
		if err = tx.QueryRowContext(ctx,
			`INSERT INTO questions (quiz_id,position,statement,option1,option2,correct_option)
			 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			q.QuizID, i, q.Statement, q.Option1, q.Option2, q.CorrectOption).Scan(&q.ID); err != nil {
			return err
		}
	}
	if qz.Questions == nil {
		qz.Questions = []Question{}
	}
	return nil
}

func (s *SQLStore) attempted(ctx context.Context, quizID int64) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scores WHERE quiz_id=$1`, quizID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) UpdateQuiz(ctx context.Context, qz Quiz) error {
	qz.Questions = nil // questions are edited through their own endpoints
	if err := ValidateQuiz(qz); err != nil {
		return err
	}
	locked, err := s.attempted(ctx, qz.ID)
	if err != nil {
		return err
	}
	if locked {
		return ErrQuizLocked
	}
	return mustAffect(s.db.ExecContext(ctx,
		`UPDATE quizzes SET chapter_id=$1, name=$2, date_of_quiz=$3, time_duration=$4, remarks=$5 WHERE id=$6`,
		qz.ChapterID, strings.TrimSpace(qz.Name), qz.Date, qz.DurationMinutes, qz.Remarks, qz.ID))
}

func (s *SQLStore) DeleteQuiz(ctx context.Context, id int64) error {
	return mustAffect(s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id=$1`, id))
}

// ---- questions ----

func (s *SQLStore) GetQuestion(ctx context.Context, id int64) (Question, error) {
	var q Question
	err := s.db.QueryRowContext(ctx,
		`SELECT id,quiz_id,statement,option1,option2,correct_option FROM questions WHERE id=$1`, id).
		Scan(&q.ID, &q.QuizID, &q.Statement, &q.Option1, &q.Option2, &q.CorrectOption)
	if err != nil {
		return Question{}, notFound(err, "question")
	}
	return q, nil
}

func (s *SQLStore) CreateQuestion(ctx context.Context, q *Question) error {
	if err := ValidateQuestion(*q); err != nil {
		return err
	}
	if _, err := s.GetQuiz(ctx, q.QuizID); err != nil {
		return err
	}
	locked, err := s.attempted(ctx, q.QuizID)
	if err != nil {
		return err
	}
	if locked {
		return ErrQuizLocked
	}
	var next int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position)+1, 0) FROM questions WHERE quiz_id=$1`, q.QuizID).Scan(&next); err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx,
		`INSERT INTO questions (quiz_id,position,statement,option1,option2,correct_option)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		q.QuizID, next, q.Statement, q.Option1, q.Option2, q.CorrectOption).Scan(&q.ID)
}

func (s *SQLStore) UpdateQuestion(ctx context.Context, q Question) error {
	cur, err := s.GetQuestion(ctx, q.ID)
	if err != nil {
		return err
	}
	q.QuizID = cur.QuizID
	if err := ValidateQuestion(q); err != nil {
		return err
	}
	locked, err := s.attempted(ctx, q.QuizID)
	if err != nil {
		return err
	}
	if locked {
		return ErrQuizLocked
	}
	return mustAffect(s.db.ExecContext(ctx,
		`UPDATE questions SET statement=$1, option1=$2, option2=$3, correct_option=$4 WHERE id=$5`,
		q.Statement, q.Option1, q.Option2, q.CorrectOption, q.ID))
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id int64) error {
	cur, err := s.GetQuestion(ctx, id)
	if err != nil {
		return err
	}
	locked, err := s.attempted(ctx, cur.QuizID)
	if err != nil {
		return err
	}
	if locked {
		return ErrQuizLocked
	}
	return mustAffect(s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id))
}

// ---- scores ----

func (s *SQLStore) scoreByAttempt(ctx context.Context, attemptID string) (Score, error) {
	var sc Score
	var ts int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id,quiz_id,user_id,attempt_id,time_stamp_of_attempt,total_scored FROM scores WHERE attempt_id=$1`,
		attemptID).Scan(&sc.ID, &sc.QuizID, &sc.UserID, &sc.AttemptID, &ts, &sc.TotalScored)
	if err != nil {
		return Score{}, notFound(err, "score")
	}
	sc.SubmittedAt = time.UnixMilli(ts).UTC()
	return sc, nil
}

func (s *SQLStore) RecordScore(ctx context.Context, sc *Score) (bool, error) {
	if sc.AttemptID != "" {
		existing, err := s.scoreByAttempt(ctx, sc.AttemptID)
		if err == nil {
			*sc = existing
			return false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return false, err
		}
	}
	if sc.SubmittedAt.IsZero() {
		sc.SubmittedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO scores (quiz_id,user_id,attempt_id,time_stamp_of_attempt,total_scored)
		 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		sc.QuizID, sc.UserID, sc.AttemptID, sc.SubmittedAt.UnixMilli(), sc.TotalScored).Scan(&sc.ID)
	if err != nil {
		// lost a race on the attempt_id unique index
		if sc.AttemptID != "" {
			if existing, e := s.scoreByAttempt(ctx, sc.AttemptID); e == nil {
				*sc = existing
				return false, nil
			}
		}
		return false, err
	}
	return true, nil
}

func (s *SQLStore) ListScores(ctx context.Context, f ScoreFilter) ([]Score, error) {
	q := `SELECT id,quiz_id,user_id,attempt_id,time_stamp_of_attempt,total_scored FROM scores WHERE 1=1`
	var args []any
	if f.UserID > 0 {
		args = append(args, f.UserID)
		q += ` AND user_id=$` + strconv.Itoa(len(args))
	}
	if f.QuizID > 0 {
		args = append(args, f.QuizID)
		q += ` AND quiz_id=$` + strconv.Itoa(len(args))
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, f.Offset)
	q += ` ORDER BY time_stamp_of_attempt DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Score{}
	for rows.Next() {
		var sc Score
		var ts int64
		if err := rows.Scan(&sc.ID, &sc.QuizID, &sc.UserID, &sc.AttemptID, &ts, &sc.TotalScored); err != nil {
			return nil, err
		}
		sc.SubmittedAt = time.UnixMilli(ts).UTC()
		out = append(out, sc)
	}
	return out, rows.Err()
}
