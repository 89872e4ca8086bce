package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/quizmaster/internal/catalog"
	"github.com/mind-engage/quizmaster/internal/client"
	"github.com/mind-engage/quizmaster/internal/session"
)

const takeHelp = `  1 | 2     choose an option
  n         save and go to the next question
  p         previous question
  g N       go to question N
  s         submit
  q         save and quit (resume later with take)
  a         abandon this attempt
`

// quizExpiredMsg is the server's 409 message for a score on a closed quiz.
const quizExpiredMsg = "quiz expired"

type autoResult struct {
	res session.Result
	err error
}

func (a *app) take(ctx context.Context, args []string) error {
	var quizID int64
	if len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("quiz id: %w", err)
		}
		quizID = id
	}
	quizzes, err := a.api.Quizzes(ctx, catalog.QuizFilter{})
	if err != nil {
		return err
	}

	done := make(chan autoResult, 1)
	ctrl := session.NewController(a.backend(),
		session.WithStore(a.kv),
		session.WithNavigation(a.nav),
		session.WithResumePolicy(a.policy),
		session.WithTickHook(func(rem int) {
			if rem == 60 || rem == 30 || (rem > 0 && rem <= 10) {
				a.notes.Warning(session.FormatRemaining(rem) + " left")
			}
		}),
		session.WithAutoSubmitHook(func(res session.Result, err error) {
			select {
			case done <- autoResult{res, err}:
			default:
			}
		}),
	)
	in := lines(os.Stdin)

	resumed, err := a.offerResume(ctx, ctrl, quizzes, quizID, in)
	if err != nil {
		return err
	}
	if !resumed {
		if quizID == 0 {
			return errors.New("usage: take QUIZ_ID")
		}
		quiz, ok := findQuiz(quizzes, quizID)
		if !ok {
			if quiz, err = a.api.Quiz(ctx, quizID); err != nil {
				return err
			}
		}
		if err := ctrl.Start(ctx, quiz); err != nil {
			if ctrl.Status() != session.StatusActive {
				return err
			}
			a.notes.Warning("attempt is not being saved: " + err.Error())
		}
		a.notes.Info(fmt.Sprintf("%s: %d questions, %s", quiz.Name, len(quiz.Questions), session.FormatRemaining(ctrl.Remaining())))
	}
	return a.attempt(ctx, ctrl, in, done)
}

// offerResume asks whether to continue a saved attempt. It reports whether
// ctrl now holds that attempt.
func (a *app) offerResume(ctx context.Context, ctrl *session.Controller, quizzes []catalog.Quiz, quizID int64, in <-chan string) (bool, error) {
	resumer := session.NewResumer(a.kv, nil)
	offer, err := resumer.Check(ctx, quizzes)
	if err != nil || offer == nil {
		return false, err
	}
	if quizID != 0 && offer.Quiz.ID != quizID {
		a.notes.Warning(fmt.Sprintf("saved attempt for %q is replaced by this one", offer.Quiz.Name))
		return false, nil
	}

	a.flush()
	fmt.Fprintf(a.out, "Saved attempt for %q from %s ago, %s left. Resume? [Y/n] ",
		offer.Quiz.Name, offer.Age.Round(time.Minute), session.FormatRemaining(offer.Snapshot.TimeRemaining))
	ans, ok := <-in
	if !ok {
		return false, errors.New("no answer")
	}
	if ans != "" && !strings.HasPrefix(strings.ToLower(ans), "y") {
		if err := resumer.Discard(ctx); err != nil {
			return false, err
		}
		a.notes.Info("Saved attempt discarded")
		return false, nil
	}

	err = ctrl.Resume(ctx, *offer)
	switch {
	case errors.Is(err, session.ErrExpired):
		return false, errors.New("that quiz has expired; the saved attempt was dropped")
	case err != nil && ctrl.Status() == session.StatusIdle:
		return false, err
	case err != nil && ctrl.Status() != session.StatusRetry:
		a.notes.Warning(err.Error())
	}
	// a failed auto-submit during Resume is reported by the attempt loop
	return true, nil
}

func (a *app) backend() session.Backend { return scoreBackend(a.api) }

// scoreBackend reports scores through api. The server's expiry verdict maps
// to session.ErrExpired so the attempt is dropped instead of retried.
func scoreBackend(api *client.Client) session.Backend {
	return session.BackendFunc(func(ctx context.Context, s session.ScoreSubmission) error {
		_, err := api.SubmitScore(ctx, client.ScoreRequest{
			QuizID:      s.QuizID,
			AttemptID:   s.AttemptID,
			SubmittedAt: s.SubmittedAt,
			TotalScored: s.TotalScored,
		})
		var ae *client.APIError
		if errors.As(err, &ae) && ae.Status == http.StatusConflict && ae.Message == quizExpiredMsg {
			return fmt.Errorf("%w: %v", session.ErrExpired, err)
		}
		return err
	})
}

func (a *app) attempt(ctx context.Context, ctrl *session.Controller, in <-chan string, done <-chan autoResult) error {
	if ctrl.Status() == session.StatusSubmitted {
		// time ran out while away
		r := <-done
		return a.finished(ctrl, r.res, r.err)
	}
	a.render(ctrl.View())
	for {
		a.flush()
		fmt.Fprint(a.out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(a.out)
			return a.quit(ctrl)
		case r := <-done:
			fmt.Fprintln(a.out)
			err := a.finished(ctrl, r.res, r.err)
			if err != nil && ctrl.Status() == session.StatusRetry {
				a.render(ctrl.View())
				continue
			}
			return err
		case line, ok := <-in:
			if !ok {
				return a.quit(ctrl)
			}
			exit, err := a.step(ctx, ctrl, line)
			if exit {
				return err
			}
			if err != nil {
				a.notes.Error(err)
			}
			a.render(ctrl.View())
		}
	}
}

// step runs one typed command and reports whether the attempt is over.
func (a *app) step(ctx context.Context, ctrl *session.Controller, line string) (bool, error) {
	v := ctrl.View()
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "1", "2":
		opt := v.Question.Option1
		if cmd == "2" {
			opt = v.Question.Option2
		}
		return false, ctrl.SelectAnswer(ctx, opt)
	case "n", "":
		err := ctrl.SaveAndNext(ctx, "")
		if errors.Is(err, session.ErrNoAnswer) {
			return false, errors.New("choose an option first")
		}
		return false, err
	case "p":
		return false, ctrl.Navigate(ctx, (v.Index-1+v.Total)%v.Total)
	case "g":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			return false, errors.New("usage: g N")
		}
		return false, ctrl.Navigate(ctx, n-1)
	case "s":
		res, err := ctrl.Submit(ctx, session.ReasonManual)
		if errors.Is(err, session.ErrSubmitInProgress) {
			return false, err
		}
		err = a.finished(ctrl, res, err)
		if err != nil && ctrl.Status() == session.StatusRetry {
			return false, nil
		}
		return true, err
	case "q":
		return true, a.quit(ctrl)
	case "a":
		if err := ctrl.Abandon(ctx); err != nil {
			return false, err
		}
		a.notes.Info("Attempt abandoned")
		return true, nil
	case "?", "h", "help":
		fmt.Fprint(a.out, takeHelp)
		return false, nil
	}
	return false, fmt.Errorf("unknown command %q, ? for help", cmd)
}

func (a *app) quit(ctrl *session.Controller) error {
	if err := ctrl.Close(context.Background()); err != nil {
		return err
	}
	a.notes.Info("Attempt saved; run quizctl take to resume")
	return nil
}

// finished reports a submission. A failed one leaves the attempt in
// StatusRetry, and the caller keeps the loop going.
func (a *app) finished(ctrl *session.Controller, res session.Result, err error) error {
	switch {
	case err == nil:
		a.notes.Success(fmt.Sprintf("Quiz submitted (%s): you scored %d out of %d", res.Reason, res.Score, res.Total))
		return nil
	case errors.Is(err, session.ErrExpired):
		return errors.New("the quiz expired before it was submitted")
	case errors.Is(err, client.ErrNetwork) && ctrl.Status() == session.StatusRetry:
		a.notes.Warning("Network problem, your answers are kept. Type s to try again.")
		return err
	case ctrl.Status() == session.StatusRetry:
		a.notes.Error(fmt.Errorf("submission failed, type s to try again: %w", err))
		return err
	}
	return err
}

func (a *app) render(v session.View) {
	if v.Total == 0 {
		return
	}
	var marks strings.Builder
	for i, done := range v.Answered {
		switch {
		case i == v.Index:
			marks.WriteByte('>')
		case done:
			marks.WriteByte('x')
		default:
			marks.WriteByte('.')
		}
	}
	fmt.Fprintf(a.out, "\n%s  [%d/%d]  %s  %s\n", v.QuizName, v.Index+1, v.Total, session.FormatRemaining(v.Remaining), marks.String())
	if v.Status == session.StatusRetry {
		fmt.Fprintln(a.out, "(submission pending; answers are frozen)")
	}
	fmt.Fprintln(a.out, v.Question.Statement)
	for i, opt := range []string{v.Question.Option1, v.Question.Option2} {
		sel := " "
		if v.Selected != "" && v.Selected == opt {
			sel = "*"
		}
		fmt.Fprintf(a.out, " %s %d) %s\n", sel, i+1, opt)
	}
}

func findQuiz(qs []catalog.Quiz, id int64) (catalog.Quiz, bool) {
	for _, q := range qs {
		if q.ID == id {
			return q, true
		}
	}
	return catalog.Quiz{}, false
}
