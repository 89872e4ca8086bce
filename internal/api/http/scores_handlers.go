package http

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	nethttp "net/http"

	"github.com/mind-engage/quizmaster/internal/catalog"
	"github.com/mind-engage/quizmaster/internal/leaderboard"
	"github.com/mind-engage/quizmaster/internal/rbac"
)

// ScoreSink is told about every newly recorded score.
type ScoreSink interface {
	ScoreSubmitted(ctx context.Context, sc catalog.Score) error
}

type scoreReq struct {
	QuizID      int64     `json:"quiz_id"`
	AttemptID   string    `json:"attempt_id"`
	SubmittedAt time.Time `json:"time_stamp_of_attempt"`
	TotalScored *int      `json:"total_scored"`
}

// POST /api/scores
// Replays with a known attempt_id return the stored score with 200.
func SubmitScoreHandler(store catalog.Store, board leaderboard.Board, sink ScoreSink, now func() time.Time) nethttp.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		p, ok := rbac.PrincipalFromContext(r.Context())
		if !ok {
			writeErr(w, nethttp.StatusUnauthorized, "unauthorized")
			return
		}
		var req scoreReq
		if !decode(w, r, &req) {
			return
		}
		fields := map[string]string{}
		if req.QuizID <= 0 {
			fields["quiz_id"] = "required"
		}
		if req.TotalScored == nil {
			fields["total_scored"] = "required"
		} else if *req.TotalScored < 0 {
			fields["total_scored"] = "must not be negative"
		}
		if len(req.AttemptID) > 64 {
			fields["attempt_id"] = "too long"
		}
		if len(fields) > 0 {
			writeJSON(w, nethttp.StatusBadRequest, errorResp{Message: "invalid input", Fields: fields})
			return
		}

		ctx := r.Context()
		quiz, err := store.GetQuiz(ctx, req.QuizID)
		if err != nil {
			storeErr(w, r, err)
			return
		}
		t := now()
		if quiz.Expired(t) {
			writeErr(w, nethttp.StatusConflict, "quiz expired")
			return
		}
		if *req.TotalScored > len(quiz.Questions) {
			writeJSON(w, nethttp.StatusBadRequest, errorResp{
				Message: "invalid input",
				Fields:  map[string]string{"total_scored": "exceeds question count " + strconv.Itoa(len(quiz.Questions))},
			})
			return
		}
		submitted := req.SubmittedAt
		if submitted.IsZero() || submitted.After(t.Add(time.Minute)) {
			submitted = t
		}

		sc := catalog.Score{
			QuizID:      quiz.ID,
			UserID:      p.UserID,
			AttemptID:   strings.TrimSpace(req.AttemptID),
			SubmittedAt: submitted.UTC(),
			TotalScored: *req.TotalScored,
		}
		created, err := store.RecordScore(ctx, &sc)
		if err != nil {
			storeErr(w, r, err)
			return
		}
		if !created {
			if sc.UserID != p.UserID {
				writeErr(w, nethttp.StatusConflict, "attempt_id already used")
				return
			}
			writeJSON(w, nethttp.StatusOK, sc)
			return
		}
		if board != nil {
			if err := board.Record(ctx, sc.QuizID, sc.UserID, sc.TotalScored); err != nil {
				log.Printf("leaderboard quiz=%d: %v", sc.QuizID, err)
			}
		}
		if sink != nil {
			if err := sink.ScoreSubmitted(ctx, sc); err != nil {
				log.Printf("score event quiz=%d user=%d: %v", sc.QuizID, sc.UserID, err)
			}
		}
		writeJSON(w, nethttp.StatusCreated, sc)
	}
}

// GET /api/scores?quiz_id=&user_id=&limit=&offset=
// Students only ever see their own scores.
func ListScoresHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		p, ok := rbac.PrincipalFromContext(r.Context())
		if !ok {
			writeErr(w, nethttp.StatusUnauthorized, "unauthorized")
			return
		}
		f := catalog.ScoreFilter{QuizID: queryInt64(r, "quiz_id")}
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
			f.Limit = v
		}
		if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
			f.Offset = v
		}
		if rbac.Can(r, rbac.PermScoreViewAll) {
			f.UserID = queryInt64(r, "user_id")
		} else {
			f.UserID = p.UserID
		}
		scores, err := store.ListScores(r.Context(), f)
		if err != nil {
			storeErr(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, scores)
	}
}
