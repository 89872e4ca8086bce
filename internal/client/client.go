package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/quizmaster/internal/auth"
	"github.com/mind-engage/quizmaster/internal/catalog"
	"github.com/mind-engage/quizmaster/internal/leaderboard"
	"github.com/mind-engage/quizmaster/internal/summary"
)

// ErrNetwork wraps transport failures (no HTTP response at all).
var ErrNetwork = errors.New("network error")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

type Client struct {
	base  string
	http  *http.Client
	token string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithToken(tok string) Option          { return func(c *Client) { c.token = tok } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) SetToken(tok string) { c.token = tok }
func (c *Client) Token() string       { return c.token }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authentication-Token", c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if w, ok := out.(io.Writer); ok {
		_, err := io.Copy(w, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	ae := &APIError{Status: resp.StatusCode}
	var m struct {
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}
	if json.Unmarshal(b, &m) == nil && m.Message != "" {
		ae.Message, ae.Fields = m.Message, m.Fields
	} else {
		ae.Message = strings.TrimSpace(string(b))
	}
	return ae
}

// ---- auth ----

type LoginResponse struct {
	Message string         `json:"message"`
	Token   string         `json:"token"`
	User    *auth.UserView `json:"user"`
}

// Login stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, http.MethodPost, "/", map[string]string{"email": email, "password": password}, &out)
	if err == nil {
		c.token = out.Token
	}
	return out, err
}

type RegisterRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"full_name,omitempty"`
	Qualification string `json:"qualification,omitempty"`
	DOB           string `json:"dob,omitempty"`
}

func (c *Client) Register(ctx context.Context, r RegisterRequest) (auth.UserView, error) {
	var out struct {
		User auth.UserView `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/register", r, &out)
	return out.User, err
}

// ---- catalog ----

func (c *Client) Subjects(ctx context.Context) ([]catalog.Subject, error) {
	var out []catalog.Subject
	return out, c.do(ctx, http.MethodGet, "/api/subjects", nil, &out)
}

func (c *Client) CreateSubject(ctx context.Context, s catalog.Subject) (catalog.Subject, error) {
	err := c.do(ctx, http.MethodPost, "/api/subjects", s, &s)
	return s, err
}

func (c *Client) UpdateSubject(ctx context.Context, s catalog.Subject) error {
	return c.do(ctx, http.MethodPut, "/api/subjects/"+id(s.ID), s, nil)
}

func (c *Client) DeleteSubject(ctx context.Context, subjectID int64) error {
	return c.do(ctx, http.MethodDelete, "/api/subjects/"+id(subjectID), nil, nil)
}

// Chapters lists chapters, all of them when subjectID is 0.
func (c *Client) Chapters(ctx context.Context, subjectID int64) ([]catalog.Chapter, error) {
	p := "/api/chapters"
	if subjectID > 0 {
		p += "?subject_id=" + id(subjectID)
	}
	var out []catalog.Chapter
	return out, c.do(ctx, http.MethodGet, p, nil, &out)
}

func (c *Client) CreateChapter(ctx context.Context, ch catalog.Chapter) (catalog.Chapter, error) {
	err := c.do(ctx, http.MethodPost, "/api/chapters", ch, &ch)
	return ch, err
}

func (c *Client) UpdateChapter(ctx context.Context, ch catalog.Chapter) error {
	return c.do(ctx, http.MethodPut, "/api/chapters/"+id(ch.ID), ch, nil)
}

func (c *Client) DeleteChapter(ctx context.Context, chapterID int64) error {
	return c.do(ctx, http.MethodDelete, "/api/chapters/"+id(chapterID), nil, nil)
}

func (c *Client) Quizzes(ctx context.Context, f catalog.QuizFilter) ([]catalog.Quiz, error) {
	q := url.Values{}
	if f.ChapterID > 0 {
		q.Set("chapter_id", id(f.ChapterID))
	}
	if f.Q != "" {
		q.Set("q", f.Q)
	}
	p := "/api/quizzes"
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	var out []catalog.Quiz
	return out, c.do(ctx, http.MethodGet, p, nil, &out)
}

func (c *Client) Quiz(ctx context.Context, quizID int64) (catalog.Quiz, error) {
	var out catalog.Quiz
	return out, c.do(ctx, http.MethodGet, "/api/quizzes/"+id(quizID), nil, &out)
}

func (c *Client) CreateQuiz(ctx context.Context, q catalog.Quiz) (catalog.Quiz, error) {
	err := c.do(ctx, http.MethodPost, "/api/quizzes", q, &q)
	return q, err
}

func (c *Client) UpdateQuiz(ctx context.Context, q catalog.Quiz) error {
	return c.do(ctx, http.MethodPut, "/api/quizzes/"+id(q.ID), q, nil)
}

func (c *Client) DeleteQuiz(ctx context.Context, quizID int64) error {
	return c.do(ctx, http.MethodDelete, "/api/quizzes/"+id(quizID), nil, nil)
}

func (c *Client) CreateQuestion(ctx context.Context, q catalog.Question) (catalog.Question, error) {
	err := c.do(ctx, http.MethodPost, "/api/questions", q, &q)
	return q, err
}

func (c *Client) UpdateQuestion(ctx context.Context, q catalog.Question) error {
	return c.do(ctx, http.MethodPut, "/api/questions/"+id(q.ID), q, nil)
}

func (c *Client) DeleteQuestion(ctx context.Context, questionID int64) error {
	return c.do(ctx, http.MethodDelete, "/api/questions/"+id(questionID), nil, nil)
}

// ---- scores ----

type ScoreRequest struct {
	QuizID      int64     `json:"quiz_id"`
	AttemptID   string    `json:"attempt_id,omitempty"`
	SubmittedAt time.Time `json:"time_stamp_of_attempt"`
	TotalScored int       `json:"total_scored"`
}

func (c *Client) SubmitScore(ctx context.Context, r ScoreRequest) (catalog.Score, error) {
	var out catalog.Score
	return out, c.do(ctx, http.MethodPost, "/api/scores", r, &out)
}

func (c *Client) Scores(ctx context.Context, f catalog.ScoreFilter) ([]catalog.Score, error) {
	q := url.Values{}
	if f.QuizID > 0 {
		q.Set("quiz_id", id(f.QuizID))
	}
	if f.UserID > 0 {
		q.Set("user_id", id(f.UserID))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	p := "/api/scores"
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	var out []catalog.Score
	return out, c.do(ctx, http.MethodGet, p, nil, &out)
}

// ---- summaries ----

func (c *Client) AdminSummary(ctx context.Context) (summary.Admin, error) {
	var out summary.Admin
	return out, c.do(ctx, http.MethodGet, "/api/summary/admin", nil, &out)
}

func (c *Client) UserSummary(ctx context.Context) (summary.User, error) {
	var out summary.User
	return out, c.do(ctx, http.MethodGet, "/api/summary/user", nil, &out)
}

func (c *Client) Leaderboard(ctx context.Context, quizID int64, limit int) ([]leaderboard.Entry, error) {
	p := "/api/quizzes/" + id(quizID) + "/leaderboard"
	if limit > 0 {
		p += "?limit=" + strconv.Itoa(limit)
	}
	var out []leaderboard.Entry
	return out, c.do(ctx, http.MethodGet, p, nil, &out)
}

// ExportUsers streams the user CSV report into w.
func (c *Client) ExportUsers(ctx context.Context, w io.Writer) error {
	return c.do(ctx, http.MethodGet, "/api/export/users", nil, w)
}

func id(n int64) string { return strconv.FormatInt(n, 10) }
