package http

import (
	nethttp "net/http"
	"strings"

	"github.com/mind-engage/quizmaster/internal/catalog"
)

// Handlers only; routes are wired in routes.go.

// ---- subjects ----

func ListSubjectsHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		subs, err := store.ListSubjects(r.Context())
		if err != nil {
			storeErr(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, subs)
	}
}

func CreateSubjectHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var s catalog.Subject
		if !decode(w, r, &s) {
			return
		}
		s.ID = 0
		if err := store.CreateSubject(r.Context(), &s); err != nil {
			storeErr(w, r, err)
			return
		}
		s.Chapters = []catalog.Chapter{}
		writeJSON(w, nethttp.StatusCreated, s)
	}
}

func UpdateSubjectHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var s catalog.Subject
		if !decode(w, r, &s) {
			return
		}
		s.ID = id
		if err := store.UpdateSubject(r.Context(), s); err != nil {
			storeErr(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]string{"message": "subject updated"})
	}
}

func DeleteSubjectHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := store.DeleteSubject(r.Context(), id); err != nil {
			storeErr(w, r, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// ---- chapters ----

func ListChaptersHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		chs, err := store.ListChapters(r.Context(), queryInt64(r, "subject_id"))
		if err != nil {
			storeErr(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, chs)
	}
}

func CreateChapterHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var c catalog.Chapter
		if !decode(w, r, &c) {
			return
		}
		c.ID = 0
		if err := store.CreateChapter(r.Context(), &c); err != nil {
			storeErr(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, c)
	}
}

func UpdateChapterHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var c catalog.Chapter
		if !decode(w, r, &c) {
			return
		}
		c.ID = id
		if err := store.UpdateChapter(r.Context(), c); err != nil {
			storeErr(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]string{"message": "chapter updated"})
	}
}

func DeleteChapterHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := store.DeleteChapter(r.Context(), id); err != nil {
			storeErr(w, r, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// ---- quizzes ----

// ListQuizzesHandler includes questions with their correct answers; the
// quiz client grades locally.
func ListQuizzesHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		f := catalog.QuizFilter{
			ChapterID: queryInt64(r, "chapter_id"),
			Q:         strings.TrimSpace(r.URL.Query().Get("q")),
		}
		qs, err := store.ListQuizzes(r.Context(), f)
		if err != nil {
			storeErr(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, qs)
	}
}

func GetQuizHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		q, err := store.GetQuiz(r.Context(), id)
		if err != nil {
			storeErr(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, q)
	}
}

func CreateQuizHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var q catalog.Quiz
		if !decode(w, r, &q) {
			return
		}
		q.ID = 0
		if err := store.CreateQuiz(r.Context(), &q); err != nil {
			storeErr(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, q)
	}
}

func UpdateQuizHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var q catalog.Quiz
		if !decode(w, r, &q) {
			return
		}
		q.ID = id
		if err := store.UpdateQuiz(r.Context(), q); err != nil {
			storeErr(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]string{"message": "quiz updated"})
	}
}

func DeleteQuizHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := store.DeleteQuiz(r.Context(), id); err != nil {
			storeErr(w, r, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// ---- questions ----

func CreateQuestionHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var q catalog.Question
		if !decode(w, r, &q) {
			return
		}
		q.ID = 0
		if err := store.CreateQuestion(r.Context(), &q); err != nil {
			storeErr(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, q)
	}
}

func UpdateQuestionHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var q catalog.Question
		if !decode(w, r, &q) {
			return
		}
		q.ID = id
		if err := store.UpdateQuestion(r.Context(), q); err != nil {
			storeErr(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]string{"message": "question updated"})
	}
}

func DeleteQuestionHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := store.DeleteQuestion(r.Context(), id); err != nil {
			storeErr(w, r, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}
