package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	authmw "github.com/mind-engage/quizmaster/internal/auth/middleware"
	"github.com/mind-engage/quizmaster/internal/rbac"
)

// bcryptCost matches the cost used for seeded and bulk-created accounts.
var bcryptCost = 12

type RoleRef struct {
	Name string `json:"name"`
}

// UserView is the account shape returned by login and register.
type UserView struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name,omitempty"`
	Qualification string    `json:"qualification,omitempty"`
	DOB           string    `json:"dob,omitempty"`
	Role          rbac.Role `json:"role"`
	Roles         []RoleRef `json:"roles"`
}

func newUserView(id int64, email, fullName, qual, dob string, role rbac.Role) UserView {
	return UserView{
		ID: id, Email: email, FullName: fullName, Qualification: qual, DOB: dob,
		Role: role, Roles: []RoleRef{{Name: role.String()}},
	}
}

type messageResp struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Token   string            `json:"token,omitempty"`
	User    *UserView         `json:"user,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /  { "email": "...", "password": "..." }
func LoginHandler(a *authmw.AuthService, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, messageResp{Message: "bad json"})
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))
		if email == "" || req.Password == "" {
			writeJSON(w, http.StatusBadRequest, messageResp{Message: "email and password required"})
			return
		}

		var (
			id                            int64
			hash, fullName, qual, dob, rn string
			active                        bool
		)
		err := db.QueryRowContext(r.Context(),
			`SELECT id, password_hash, full_name, qualification, dob, role, active FROM users WHERE email=$1`,
			email).Scan(&id, &hash, &fullName, &qual, &dob, &rn, &active)
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusUnauthorized, messageResp{Message: "invalid credentials"})
			return
		}
		if err != nil {
			log.Printf("login %s: %v", email, err)
			writeJSON(w, http.StatusInternalServerError, messageResp{Message: "login failed"})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
			writeJSON(w, http.StatusUnauthorized, messageResp{Message: "invalid credentials"})
			return
		}
		if !active {
			writeJSON(w, http.StatusForbidden, messageResp{Message: "account inactive"})
			return
		}
		role, err := rbac.ParseRole(rn)
		if err != nil {
			writeJSON(w, http.StatusForbidden, messageResp{Message: "account has no usable role"})
			return
		}
		tok, err := a.IssueJWT(id, email, role)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, messageResp{Message: "issue token"})
			return
		}
		u := newUserView(id, email, fullName, qual, dob, role)
		writeJSON(w, http.StatusOK, messageResp{Message: "login successful", Token: tok, User: &u})
	}
}

type registerReq struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"full_name"`
	Qualification string `json:"qualification"`
	DOB           string `json:"dob"` // YYYY-MM-DD
}

func (req registerReq) validate() map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(req.Email) == "" {
		fields["email"] = "required"
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		fields["email"] = "invalid email address"
	}
	if len(req.Password) < 6 {
		fields["password"] = "must be at least 6 characters"
	}
	if req.DOB != "" {
		if _, err := time.Parse(time.DateOnly, req.DOB); err != nil {
			fields["dob"] = "expected YYYY-MM-DD"
		}
	}
	return fields
}

// POST /register: self-service sign-up always creates an active student.
func RegisterHandler(db *sql.DB, enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !enabled {
			writeJSON(w, http.StatusForbidden, messageResp{Message: "registration disabled"})
			return
		}
		var req registerReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, messageResp{Message: "bad json"})
			return
		}
		if fields := req.validate(); len(fields) > 0 {
			writeJSON(w, http.StatusBadRequest, messageResp{Message: "invalid input", Fields: fields})
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))

		var exists int
		err := db.QueryRowContext(r.Context(), `SELECT 1 FROM users WHERE email=$1`, email).Scan(&exists)
		if err == nil {
			writeJSON(w, http.StatusBadRequest, messageResp{Message: "user already exists"})
			return
		}
		if !errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusInternalServerError, messageResp{Message: err.Error()})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, messageResp{Message: err.Error()})
			return
		}
		role := rbac.RoleStudent
		var id int64
		err = db.QueryRowContext(r.Context(),
			`INSERT INTO users (email, password_hash, full_name, qualification, dob, role, active, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,TRUE,$7) RETURNING id`,
			email, string(hash), strings.TrimSpace(req.FullName), strings.TrimSpace(req.Qualification),
			req.DOB, role.String(), time.Now().Unix()).Scan(&id)
		if err != nil {
			log.Printf("register %s: %v", email, err)
			writeJSON(w, http.StatusInternalServerError, messageResp{Message: "could not create user"})
			return
		}
		u := newUserView(id, email, req.FullName, req.Qualification, req.DOB, role)
		writeJSON(w, http.StatusCreated, messageResp{Message: "Student successfully created", User: &u})
	}
}
