package http

import (
	"database/sql"
	"time"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/quizmaster/internal/auth"
	authmw "github.com/mind-engage/quizmaster/internal/auth/middleware"
	"github.com/mind-engage/quizmaster/internal/catalog"
	"github.com/mind-engage/quizmaster/internal/events"
	"github.com/mind-engage/quizmaster/internal/leaderboard"
	"github.com/mind-engage/quizmaster/internal/rbac"
	"github.com/mind-engage/quizmaster/internal/summary"
)

type Deps struct {
	DB                 *sql.DB
	Store              catalog.Store
	Auth               *authmw.AuthService
	Summary            *summary.Service
	Board              leaderboard.Board
	Events             ScoreSink   // optional
	EventLog           *events.Log // defaults to the local site's log
	EnableRegistration bool
	Now                func() time.Time // defaults to time.Now
}

// Mount registers login, registration and the protected /api surface on r.
func Mount(r chi.Router, d Deps) {
	if d.Board == nil {
		d.Board = leaderboard.NewSQLBoard(d.DB)
	}
	if d.Summary == nil {
		d.Summary = summary.NewService(d.DB)
	}
	if d.EventLog == nil {
		d.EventLog = events.NewLog(d.DB, "")
	}

	r.Post("/", auth.LoginHandler(d.Auth, d.DB))
	r.Post("/register", auth.RegisterHandler(d.DB, d.EnableRegistration))

	r.Route("/api", func(ar chi.Router) {
		ar.Use(authmw.JWTMiddleware(d.Auth), authmw.AttachRoleFromDB(d.DB))

		view := ar.With(rbac.Require(rbac.PermCatalogView))
		manage := ar.With(rbac.Require(rbac.PermCatalogManage))

		view.Get("/subjects", ListSubjectsHandler(d.Store))
		manage.Post("/subjects", CreateSubjectHandler(d.Store))
		manage.Put("/subjects/{id}", UpdateSubjectHandler(d.Store))
		manage.Delete("/subjects/{id}", DeleteSubjectHandler(d.Store))

		view.Get("/chapters", ListChaptersHandler(d.Store))
		manage.Post("/chapters", CreateChapterHandler(d.Store))
		manage.Put("/chapters/{id}", UpdateChapterHandler(d.Store))
		manage.Delete("/chapters/{id}", DeleteChapterHandler(d.Store))

		view.Get("/quizzes", ListQuizzesHandler(d.Store))
		view.Get("/quizzes/{id}", GetQuizHandler(d.Store))
		view.Get("/quizzes/{id}/leaderboard", LeaderboardHandler(d.Board))
		manage.Post("/quizzes", CreateQuizHandler(d.Store))
		manage.Put("/quizzes/{id}", UpdateQuizHandler(d.Store))
		manage.Delete("/quizzes/{id}", DeleteQuizHandler(d.Store))

		manage.Post("/questions", CreateQuestionHandler(d.Store))
		manage.Put("/questions/{id}", UpdateQuestionHandler(d.Store))
		manage.Delete("/questions/{id}", DeleteQuestionHandler(d.Store))

		ar.With(rbac.Require(rbac.PermScoreSubmit)).
			Post("/scores", SubmitScoreHandler(d.Store, d.Board, d.Events, d.Now))
		ar.With(rbac.RequireAny(rbac.PermScoreViewOwn, rbac.PermScoreViewAll)).
			Get("/scores", ListScoresHandler(d.Store))

		ar.With(rbac.Require(rbac.PermSummaryAdmin)).
			Get("/summary/admin", AdminSummaryHandler(d.Summary))
		ar.With(rbac.Require(rbac.PermSummaryUser)).
			Get("/summary/user", UserSummaryHandler(d.Summary))
		ar.With(rbac.Require(rbac.PermUsersExport)).
			Get("/export/users", ExportUsersHandler(d.Summary))
		ar.With(rbac.Require(rbac.PermEventsRead)).
			Get("/events", EventsHandler(d.EventLog))
	})

	r.Get("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) { w.WriteHeader(nethttp.StatusOK) })
	r.Get("/readyz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := d.DB.PingContext(r.Context()); err != nil {
			nethttp.Error(w, "db not ready", nethttp.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(nethttp.StatusOK)
	})
}
