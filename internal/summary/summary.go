package summary

import (
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// Series is one chart's data: Values[i] belongs to Labels[i].
type Series struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

func (s *Series) add(label string, v int) {
	s.Labels = append(s.Labels, label)
	s.Values = append(s.Values, v)
}

func newSeries() Series { return Series{Labels: []string{}, Values: []int{}} }

type Admin struct {
	SubjectTopScores Series `json:"subject_top_scores"`
	SubjectAttempts  Series `json:"subject_attempts"`
}

type User struct {
	SubjectQuestions Series `json:"subject_questions"`
	SubjectAttempts  Series `json:"subject_attempts"`
}

type Service struct{ db *sql.DB }

func NewService(db *sql.DB) *Service { return &Service{db: db} }

// Admin returns the best score and number of attempts per subject.
func (s *Service) Admin(ctx context.Context) (Admin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sub.name, COALESCE(MAX(sc.total_scored), 0), COUNT(sc.id)
		FROM subjects sub
		LEFT JOIN chapters ch ON ch.subject_id = sub.id
		LEFT JOIN quizzes q ON q.chapter_id = ch.id
		LEFT JOIN scores sc ON sc.quiz_id = q.id
		GROUP BY sub.id, sub.name
		ORDER BY sub.id`)
	if err != nil {
		return Admin{}, err
	}
	defer rows.Close()
	out := Admin{SubjectTopScores: newSeries(), SubjectAttempts: newSeries()}
	for rows.Next() {
		var (
			name     string
			top, cnt int
		)
		if err := rows.Scan(&name, &top, &cnt); err != nil {
			return Admin{}, err
		}
		out.SubjectTopScores.add(name, top)
		out.SubjectAttempts.add(name, cnt)
	}
	return out, rows.Err()
}

// User returns the question count per subject and the user's own attempts
// per subject.
func (s *Service) User(ctx context.Context, userID int64) (User, error) {
	questions, err := s.series(ctx, `
		SELECT sub.name, COUNT(qu.id)
		FROM subjects sub
		LEFT JOIN chapters ch ON ch.subject_id = sub.id
		LEFT JOIN quizzes q ON q.chapter_id = ch.id
		LEFT JOIN questions qu ON qu.quiz_id = q.id
		GROUP BY sub.id, sub.name
		ORDER BY sub.id`)
	if err != nil {
		return User{}, err
	}
	attempts, err := s.series(ctx, `
		SELECT sub.name, COUNT(sc.id)
		FROM subjects sub
		LEFT JOIN chapters ch ON ch.subject_id = sub.id
		LEFT JOIN quizzes q ON q.chapter_id = ch.id
		LEFT JOIN scores sc ON sc.quiz_id = q.id AND sc.user_id = $1
		GROUP BY sub.id, sub.name
		ORDER BY sub.id`, userID)
	if err != nil {
		return User{}, err
	}
	return User{SubjectQuestions: questions, SubjectAttempts: attempts}, nil
}

func (s *Service) series(ctx context.Context, q string, args ...any) (Series, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return Series{}, err
	}
	defer rows.Close()
	out := newSeries()
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return Series{}, err
		}
		out.add(name, n)
	}
	return out, rows.Err()
}

// UserRow is one line of the student activity report.
type UserRow struct {
	UserID       int64
	Name         string
	Email        string
	TotalQuizzes int
	AverageScore float64
	LastQuiz     time.Time // zero when the user has no attempts
}

// UserReport lists every student with their attempt statistics.
func (s *Service) UserReport(ctx context.Context) ([]UserRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.full_name, u.email, COUNT(sc.id),
		       COALESCE(AVG(sc.total_scored), 0), COALESCE(MAX(sc.time_stamp_of_attempt), 0)
		FROM users u
		LEFT JOIN scores sc ON sc.user_id = u.id
		WHERE u.role = 'student'
		GROUP BY u.id, u.full_name, u.email
		ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UserRow
	for rows.Next() {
		var (
			r    UserRow
			last int64
		)
		if err := rows.Scan(&r.UserID, &r.Name, &r.Email, &r.TotalQuizzes, &r.AverageScore, &last); err != nil {
			return nil, err
		}
		if last > 0 {
			r.LastQuiz = time.UnixMilli(last).UTC()
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var reportHeader = []string{"User ID", "Name", "Email", "Total Quizzes", "Average Score", "Last Quiz Date"}

func WriteCSV(w io.Writer, rows []UserRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		last := ""
		if !r.LastQuiz.IsZero() {
			last = r.LastQuiz.Format(time.DateOnly)
		}
		if err := cw.Write([]string{
			strconv.FormatInt(r.UserID, 10),
			r.Name,
			r.Email,
			strconv.Itoa(r.TotalQuizzes),
			strconv.FormatFloat(r.AverageScore, 'f', 2, 64),
			last,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
