package http

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/quizmaster/internal/catalog"
)

type errorResp struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w nethttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w nethttp.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResp{Message: msg})
}

// storeErr maps catalog errors onto status codes.
func storeErr(w nethttp.ResponseWriter, r *nethttp.Request, err error) {
	var ve *catalog.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, nethttp.StatusBadRequest, errorResp{Message: "invalid input", Fields: ve.Fields})
	case errors.Is(err, catalog.ErrNotFound):
		writeErr(w, nethttp.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrQuizLocked):
		writeErr(w, nethttp.StatusConflict, err.Error())
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeErr(w, nethttp.StatusInternalServerError, "db error")
	}
}

func pathID(w nethttp.ResponseWriter, r *nethttp.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeErr(w, nethttp.StatusBadRequest, "bad "+name)
		return 0, false
	}
	return id, true
}

func queryInt64(r *nethttp.Request, name string) int64 {
	v, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return v
}

func decode(w nethttp.ResponseWriter, r *nethttp.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErr(w, nethttp.StatusBadRequest, "bad json")
		return false
	}
	return true
}
