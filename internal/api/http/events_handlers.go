package http

import (
	"strconv"

	nethttp "net/http"

	"github.com/mind-engage/quizmaster/internal/events"
)

// GET /api/events?after=&limit=
// Feeds downstream consumers that cannot subscribe to the broker.
func EventsHandler(l *events.Log) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		after := queryInt64(r, "after")
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		evs, err := l.Since(r.Context(), after, limit)
		if err != nil {
			storeErr(w, r, err)
			return
		}
		if evs == nil {
			evs = []events.Event{}
		}
		writeJSON(w, nethttp.StatusOK, evs)
	}
}
