package catalog

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// ValidationError reports per-field problems with an admin form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

type fieldErrs map[string]string

func (f fieldErrs) required(field, v string) {
	if strings.TrimSpace(v) == "" {
		f[field] = "required"
	}
}

func (f fieldErrs) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

func ValidateSubject(s Subject) error {
	f := fieldErrs{}
	f.required("name", s.Name)
	return f.err()
}

func ValidateChapter(c Chapter) error {
	f := fieldErrs{}
	f.required("name", c.Name)
	if c.SubjectID <= 0 {
		f["subject_id"] = "required"
	}
	return f.err()
}

func ValidateQuiz(q Quiz) error {
	f := fieldErrs{}
	f.required("name", q.Name)
	if q.ChapterID <= 0 {
		f["chapter_id"] = "required"
	}
	if strings.TrimSpace(q.Date) == "" {
		f["date_of_quiz"] = "required"
	} else if _, err := time.Parse(time.DateOnly, q.Date); err != nil {
		f["date_of_quiz"] = "expected YYYY-MM-DD"
	}
	if q.DurationMinutes <= 0 {
		f["time_duration"] = "must be a positive number of minutes"
	}
	for i, qq := range q.Questions {
		qq.QuizID = 1 // inline questions get their quiz id on insert
		if err := ValidateQuestion(qq); err != nil {
			for k, v := range err.(*ValidationError).Fields {
				f["questions["+strconv.Itoa(i)+"]."+k] = v
			}
		}
	}
	return f.err()
}

func ValidateQuestion(q Question) error {
	f := fieldErrs{}
	f.required("question_statement", q.Statement)
	f.required("option1", q.Option1)
	f.required("option2", q.Option2)
	f.required("correct_answer", q.CorrectOption)
	if q.QuizID <= 0 {
		f["quiz_id"] = "required"
	}
	if q.Option1 != "" && strings.TrimSpace(q.Option1) == strings.TrimSpace(q.Option2) {
		f["option2"] = "duplicate option text"
	}
	if q.CorrectOption != "" && q.CorrectOption != q.Option1 && q.CorrectOption != q.Option2 {
		f["correct_answer"] = "must match one of the options"
	}
	return f.err()
}
