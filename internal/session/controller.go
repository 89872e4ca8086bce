package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/quizmaster/internal/catalog"
	"github.com/mind-engage/quizmaster/internal/grading"
	"github.com/mind-engage/quizmaster/internal/localstore"
)

var (
	ErrExpired          = errors.New("quiz expired")
	ErrNoActiveAttempt  = errors.New("no active attempt")
	ErrSubmitInProgress = errors.New("submission already in progress")
	ErrIndexOutOfRange  = errors.New("question index out of range")
	ErrNoAnswer         = errors.New("no answer selected")
	ErrEmptyQuiz        = errors.New("quiz has no questions")
)

type Status int

const (
	StatusIdle Status = iota
	StatusActive
	StatusSubmitting
	StatusRetry // last submit failed; answers frozen, Submit or Abandon
	StatusSubmitted
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusActive:
		return "active"
	case StatusSubmitting:
		return "submitting"
	case StatusRetry:
		return "retry"
	case StatusSubmitted:
		return "submitted"
	case StatusExpired:
		return "expired"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

type Reason int

const (
	ReasonManual Reason = iota
	ReasonTimeout
)

func (r Reason) String() string {
	if r == ReasonTimeout {
		return "timeout"
	}
	return "manual"
}

// NavigationMode decides where SaveAndNext goes after the last question.
type NavigationMode int

const (
	NavWrap NavigationMode = iota // back to the first question
	NavStop                       // stay on the last question
)

// ResumePolicy decides whether time spent away counts against a resumed attempt.
type ResumePolicy int

const (
	ResumePause  ResumePolicy = iota // restore the saved remaining time as is
	ResumeDeduct                     // subtract wall-clock time since the snapshot
)

type ScoreSubmission struct {
	QuizID      int64
	AttemptID   string
	SubmittedAt time.Time
	TotalScored int
}

// Backend records a finished attempt.
type Backend interface {
	SubmitScore(ctx context.Context, s ScoreSubmission) error
}

type BackendFunc func(ctx context.Context, s ScoreSubmission) error

func (f BackendFunc) SubmitScore(ctx context.Context, s ScoreSubmission) error { return f(ctx, s) }

type Result struct {
	Score       int
	Total       int
	SubmittedAt time.Time
	Reason      Reason
}

type Option func(*config)

type config struct {
	store        localstore.Store
	nav          NavigationMode
	resume       ResumePolicy
	now          func() time.Time
	newTicker    TickerFunc
	tick         time.Duration
	onTick       func(remaining int)
	onAutoSubmit func(Result, error)
}

func WithStore(s localstore.Store) Option       { return func(c *config) { c.store = s } }
func WithNavigation(m NavigationMode) Option    { return func(c *config) { c.nav = m } }
func WithResumePolicy(p ResumePolicy) Option    { return func(c *config) { c.resume = p } }
func WithClock(now func() time.Time) Option     { return func(c *config) { c.now = now } }
func WithTicker(f TickerFunc) Option            { return func(c *config) { c.newTicker = f } }
func WithTickHook(f func(remaining int)) Option { return func(c *config) { c.onTick = f } }
func WithAutoSubmitHook(f func(Result, error)) Option {
	return func(c *config) { c.onAutoSubmit = f }
}

// Controller owns one quiz attempt at a time. It is safe for concurrent use;
// the countdown runs on its own goroutine.
type Controller struct {
	backend Backend
	cfg     config

	mu        sync.Mutex
	status    Status
	quiz      catalog.Quiz
	attemptID string
	index     int
	answers   *Answers
	remaining int
	startedAt time.Time
	stop      chan struct{} // closed to stop the current countdown
}

func NewController(backend Backend, opts ...Option) *Controller {
	cfg := config{
		now:       time.Now,
		newTicker: NewStdTicker,
		tick:      time.Second,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Controller{backend: backend, cfg: cfg, answers: NewAnswers()}
}

// Start begins a new attempt, cancelling any countdown still running. An
// expired quiz leaves the controller untouched.
func (c *Controller) Start(ctx context.Context, quiz catalog.Quiz) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusSubmitting {
		return ErrSubmitInProgress
	}
	if quiz.Expired(c.cfg.now()) {
		return ErrExpired
	}
	if len(quiz.Questions) == 0 {
		return ErrEmptyQuiz
	}
	c.stopTimerLocked()

	c.quiz = quiz
	c.attemptID = uuid.NewString()
	c.index = 0
	c.answers = NewAnswers()
	c.remaining = int(quiz.Duration() / time.Second)
	c.startedAt = c.cfg.now()
	c.status = StatusActive
	c.startTimerLocked(ctx)
	return c.saveLocked(ctx)
}

// SelectAnswer records value for the current question. The answer is kept
// even when persisting the snapshot fails; the error is still returned.
func (c *Controller) SelectAnswer(ctx context.Context, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusActive {
		return ErrNoActiveAttempt
	}
	c.answers.Set(c.index, value)
	return c.saveLocked(ctx)
}

// SaveAndNext records value (or keeps the already recorded answer when value
// is empty) and moves to the next question.
func (c *Controller) SaveAndNext(ctx context.Context, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusActive {
		return ErrNoActiveAttempt
	}
	if value == "" {
		v, ok := c.answers.Get(c.index)
		if !ok || v == "" {
			return ErrNoAnswer
		}
		value = v
	}
	c.answers.Set(c.index, value)

	n := len(c.quiz.Questions)
	switch c.cfg.nav {
	case NavStop:
		if c.index < n-1 {
			c.index++
		}
	default:
		c.index = (c.index + 1) % n
	}
	return c.saveLocked(ctx)
}

func (c *Controller) Navigate(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusActive && c.status != StatusRetry {
		return ErrNoActiveAttempt
	}
	if index < 0 || index >= len(c.quiz.Questions) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(c.quiz.Questions))
	}
	c.index = index
	return c.saveLocked(ctx)
}

// Submit grades and reports the attempt. Only one submission may be in
// flight; a failed report leaves the attempt in StatusRetry with its
// snapshot intact.
func (c *Controller) Submit(ctx context.Context, reason Reason) (Result, error) {
	return c.submit(ctx, reason, nil)
}

// submit is shared by Submit and the countdown. owner is the countdown's stop
// channel, nil for manual calls; a countdown from an older attempt is ignored.
func (c *Controller) submit(ctx context.Context, reason Reason, owner chan struct{}) (Result, error) {
	c.mu.Lock()
	switch c.status {
	case StatusActive, StatusRetry:
	case StatusSubmitting:
		c.mu.Unlock()
		return Result{}, ErrSubmitInProgress
	default:
		c.mu.Unlock()
		return Result{}, ErrNoActiveAttempt
	}
	if owner != nil && c.stop != owner {
		c.mu.Unlock()
		return Result{}, ErrNoActiveAttempt
	}
	c.stopTimerLocked()

	now := c.cfg.now()
	if c.quiz.Expired(now) {
		c.status = StatusExpired
		err := clearSnapshot(ctx, c.cfg.store)
		c.mu.Unlock()
		if err != nil {
			return Result{}, fmt.Errorf("%w (clear snapshot: %v)", ErrExpired, err)
		}
		return Result{}, ErrExpired
	}

	correct := make([]string, len(c.quiz.Questions))
	for i, q := range c.quiz.Questions {
		correct[i] = q.CorrectOption
	}
	g := grading.Grade(correct, c.answers)
	sub := ScoreSubmission{
		QuizID:      c.quiz.ID,
		AttemptID:   c.attemptID,
		SubmittedAt: now,
		TotalScored: g.Score,
	}
	c.status = StatusSubmitting
	c.mu.Unlock()

	err := c.backend.SubmitScore(ctx, sub)

	c.mu.Lock()
	defer c.mu.Unlock()
	if errors.Is(err, ErrExpired) {
		// rejected by the backend's clock; not retryable
		c.status = StatusExpired
		if cerr := clearSnapshot(ctx, c.cfg.store); cerr != nil {
			return Result{}, fmt.Errorf("submit score: %w (clear snapshot: %v)", err, cerr)
		}
		return Result{}, fmt.Errorf("submit score: %w", err)
	}
	if err != nil {
		c.status = StatusRetry
		if serr := c.saveLocked(ctx); serr != nil {
			return Result{}, fmt.Errorf("submit score: %w (save snapshot: %v)", err, serr)
		}
		return Result{}, fmt.Errorf("submit score: %w", err)
	}
	c.status = StatusSubmitted
	res := Result{Score: g.Score, Total: g.Total, SubmittedAt: now, Reason: reason}
	if err := clearSnapshot(ctx, c.cfg.store); err != nil {
		return res, fmt.Errorf("clear snapshot: %w", err)
	}
	return res, nil
}

// Close stops the countdown and persists the attempt so it can be resumed.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	if c.status != StatusActive && c.status != StatusRetry {
		return nil
	}
	err := c.saveLocked(ctx)
	c.status = StatusIdle
	return err
}

// Abandon drops the attempt and its snapshot without scoring.
func (c *Controller) Abandon(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusSubmitting {
		return ErrSubmitInProgress
	}
	c.stopTimerLocked()
	c.status = StatusIdle
	c.answers = NewAnswers()
	return clearSnapshot(ctx, c.cfg.store)
}

// Resume rehydrates an attempt from an offer produced by Resumer.Check.
func (c *Controller) Resume(ctx context.Context, o Offer) error {
	c.mu.Lock()
	if c.status == StatusSubmitting {
		c.mu.Unlock()
		return ErrSubmitInProgress
	}
	now := c.cfg.now()
	if o.Quiz.Expired(now) {
		c.mu.Unlock()
		_ = clearSnapshot(ctx, c.cfg.store)
		return ErrExpired
	}
	n := len(o.Quiz.Questions)
	if n == 0 {
		c.mu.Unlock()
		return ErrEmptyQuiz
	}
	c.stopTimerLocked()

	answers := NewAnswers()
	for _, i := range o.Snapshot.Answers.Indices() {
		if i < n {
			v, _ := o.Snapshot.Answers.Get(i)
			answers.Set(i, v)
		}
	}
	remaining := o.Snapshot.TimeRemaining
	if c.cfg.resume == ResumeDeduct {
		if away := int(now.Sub(o.Snapshot.SavedAt()) / time.Second); away > 0 {
			remaining -= away
		}
		if remaining < 0 {
			remaining = 0
		}
	}
	idx := o.Snapshot.CurrentIndex
	if idx >= n {
		idx = 0
	}

	c.quiz = o.Quiz
	c.attemptID = o.Snapshot.AttemptID
	if c.attemptID == "" {
		c.attemptID = uuid.NewString()
	}
	c.index = idx
	c.answers = answers
	c.remaining = remaining
	c.startedAt = now
	c.status = StatusActive

	if remaining == 0 {
		c.mu.Unlock()
		res, err := c.submit(ctx, ReasonTimeout, nil)
		if hook := c.cfg.onAutoSubmit; hook != nil {
			hook(res, err)
		}
		return err
	}
	c.startTimerLocked(ctx)
	err := c.saveLocked(ctx)
	c.mu.Unlock()
	return err
}

// View is a read-only copy of the attempt state.
type View struct {
	Status    Status
	QuizID    int64
	QuizName  string
	AttemptID string
	Index     int
	Total     int
	Question  catalog.Question
	Selected  string // recorded answer for Question, if any
	Answered  []bool
	Remaining int
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		Status:    c.status,
		QuizID:    c.quiz.ID,
		QuizName:  c.quiz.Name,
		AttemptID: c.attemptID,
		Index:     c.index,
		Total:     len(c.quiz.Questions),
		Remaining: c.remaining,
	}
	if c.index < len(c.quiz.Questions) {
		v.Question = c.quiz.Questions[c.index]
	}
	v.Selected, _ = c.answers.Get(c.index)
	v.Answered = make([]bool, v.Total)
	for i := range v.Answered {
		v.Answered[i] = c.answers.Has(i)
	}
	return v
}

func (c *Controller) Answers() *Answers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.Clone()
}

func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) saveLocked(ctx context.Context) error {
	err := saveSnapshot(ctx, c.cfg.store, Snapshot{
		QuizID:        c.quiz.ID,
		AttemptID:     c.attemptID,
		CurrentIndex:  c.index,
		Answers:       c.answers.Clone(),
		TimeRemaining: c.remaining,
		Timestamp:     c.cfg.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// ---- countdown ----

func (c *Controller) startTimerLocked(ctx context.Context) {
	stop := make(chan struct{})
	c.stop = stop
	go c.runTimer(ctx, c.cfg.newTicker(c.cfg.tick), stop)
}

// stopTimerLocked signals the countdown without waiting for it; the countdown
// may itself be the caller.
func (c *Controller) stopTimerLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Controller) runTimer(ctx context.Context, t Ticker, stop chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-t.C():
		}

		c.mu.Lock()
		if c.stop != stop || c.status != StatusActive {
			c.mu.Unlock()
			return
		}
		if c.remaining > 0 {
			c.remaining--
		}
		rem := c.remaining
		c.mu.Unlock()

		if c.cfg.onTick != nil {
			c.cfg.onTick(rem)
		}
		if rem == 0 {
			res, err := c.submit(ctx, ReasonTimeout, stop)
			if errors.Is(err, ErrNoActiveAttempt) || errors.Is(err, ErrSubmitInProgress) {
				return // beaten by a manual submit or a new attempt
			}
			if c.cfg.onAutoSubmit != nil {
				c.cfg.onAutoSubmit(res, err)
			}
			return
		}
	}
}
