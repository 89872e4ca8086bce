package http

import (
	"log"
	"strconv"

	nethttp "net/http"

	"github.com/mind-engage/quizmaster/internal/leaderboard"
	"github.com/mind-engage/quizmaster/internal/rbac"
	"github.com/mind-engage/quizmaster/internal/summary"
)

func AdminSummaryHandler(svc *summary.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		out, err := svc.Admin(r.Context())
		if err != nil {
			storeErr(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, out)
	}
}

func UserSummaryHandler(svc *summary.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		p, ok := rbac.PrincipalFromContext(r.Context())
		if !ok {
			writeErr(w, nethttp.StatusUnauthorized, "unauthorized")
			return
		}
		out, err := svc.User(r.Context(), p.UserID)
		if err != nil {
			storeErr(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, out)
	}
}

// GET /api/export/users (text/csv)
func ExportUsersHandler(svc *summary.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		rows, err := svc.UserReport(r.Context())
		if err != nil {
			storeErr(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="users.csv"`)
		if err := summary.WriteCSV(w, rows); err != nil {
			log.Printf("export users: %v", err)
		}
	}
}

// GET /api/quizzes/{id}/leaderboard?limit=
func LeaderboardHandler(board leaderboard.Board) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if n <= 0 || n > 100 {
			n = 10
		}
		top, err := board.Top(r.Context(), id, n)
		if err != nil {
			log.Printf("leaderboard quiz=%d: %v", id, err)
			writeErr(w, nethttp.StatusServiceUnavailable, "leaderboard unavailable")
			return
		}
		writeJSON(w, nethttp.StatusOK, top)
	}
}
