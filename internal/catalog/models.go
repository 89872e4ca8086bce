package catalog

import (
	"time"
)

type Subject struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Chapters    []Chapter `json:"chapters"`
}

type Chapter struct {
	ID          int64  `json:"id"`
	SubjectID   int64  `json:"subject_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Question is a two-option question; CorrectOption must equal Option1 or Option2.
type Question struct {
	ID            int64  `json:"id"`
	QuizID        int64  `json:"quiz_id"`
	Statement     string `json:"question_statement"`
	Option1       string `json:"option1"`
	Option2       string `json:"option2"`
	CorrectOption string `json:"correct_answer"`
}

type Quiz struct {
	ID              int64      `json:"id"`
	ChapterID       int64      `json:"chapter_id"`
	Name            string     `json:"name"`
	Date            string     `json:"date_of_quiz"`  // YYYY-MM-DD, empty means unscheduled
	DurationMinutes int        `json:"time_duration"` // minutes
	Remarks         string     `json:"remarks"`
	Questions       []Question `json:"questions"`
}

type Score struct {
	ID          int64     `json:"id"`
	QuizID      int64     `json:"quiz_id"`
	UserID      int64     `json:"user_id"`
	AttemptID   string    `json:"attempt_id,omitempty"`
	SubmittedAt time.Time `json:"time_stamp_of_attempt"`
	TotalScored int       `json:"total_scored"`
}

// ScheduledDay returns the quiz date as midnight in loc.
func (q Quiz) ScheduledDay(loc *time.Location) (time.Time, bool) {
	if q.Date == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(time.DateOnly, q.Date, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Expired reports whether the scheduled day has ended at now. The quiz stays
// open for the whole of its scheduled calendar day in now's location.
// Unscheduled quizzes never expire.
func (q Quiz) Expired(now time.Time) bool {
	day, ok := q.ScheduledDay(now.Location())
	if !ok {
		return false
	}
	return !now.Before(day.AddDate(0, 0, 1))
}

// Duration is the time allowed for one attempt.
func (q Quiz) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}
