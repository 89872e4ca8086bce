package catalog

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrQuizLocked is returned when editing a quiz that already has scores.
	ErrQuizLocked = errors.New("quiz already attempted")
)

type QuizFilter struct {
	ChapterID int64
	Q         string // case-insensitive name match
}

type ScoreFilter struct {
	UserID int64
	QuizID int64
	Limit  int
	Offset int
}

type Store interface {
	ListSubjects(ctx context.Context) ([]Subject, error) // with chapters
	GetSubject(ctx context.Context, id int64) (Subject, error)
	CreateSubject(ctx context.Context, s *Subject) error
	UpdateSubject(ctx context.Context, s Subject) error
	DeleteSubject(ctx context.Context, id int64) error

	ListChapters(ctx context.Context, subjectID int64) ([]Chapter, error) // subjectID 0 lists all
	GetChapter(ctx context.Context, id int64) (Chapter, error)
	CreateChapter(ctx context.Context, c *Chapter) error
	UpdateChapter(ctx context.Context, c Chapter) error
	DeleteChapter(ctx context.Context, id int64) error

	ListQuizzes(ctx context.Context, f QuizFilter) ([]Quiz, error) // with questions
	GetQuiz(ctx context.Context, id int64) (Quiz, error)
	CreateQuiz(ctx context.Context, q *Quiz) error // inserts inline questions too
	UpdateQuiz(ctx context.Context, q Quiz) error
	DeleteQuiz(ctx context.Context, id int64) error

	GetQuestion(ctx context.Context, id int64) (Question, error)
	CreateQuestion(ctx context.Context, q *Question) error
	UpdateQuestion(ctx context.Context, q Question) error
	DeleteQuestion(ctx context.Context, id int64) error

	// RecordScore inserts s unless a score with the same non-empty AttemptID
	// exists, in which case s is filled from the stored row and created is false.
	RecordScore(ctx context.Context, s *Score) (created bool, err error)
	ListScores(ctx context.Context, f ScoreFilter) ([]Score, error)
}
