// Command quizctl is a terminal client for the quiz server: it logs in, lists
// quizzes and runs timed attempts that survive a restart.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mind-engage/quizmaster/internal/appstate"
	"github.com/mind-engage/quizmaster/internal/catalog"
	"github.com/mind-engage/quizmaster/internal/client"
	"github.com/mind-engage/quizmaster/internal/localstore"
	"github.com/mind-engage/quizmaster/internal/notify"
	"github.com/mind-engage/quizmaster/internal/rbac"
	"github.com/mind-engage/quizmaster/internal/session"
)

const usage = `usage: quizctl [flags] <command> [args]

commands:
  login EMAIL PASSWORD
  logout
  register EMAIL PASSWORD [FULL NAME]
  whoami
  subjects
  quizzes [-chapter ID] [SEARCH]
  take [QUIZ_ID]          start a quiz, or resume the saved attempt
  scores [-quiz ID]
  summary
  leaderboard QUIZ_ID
  export [FILE]           admin: write the user report as CSV

flags:
`

type app struct {
	api   *client.Client
	state *appstate.Store
	kv    localstore.Store
	notes *notify.Service
	inbox <-chan notify.Notification
	out   io.Writer

	nav    session.NavigationMode
	policy session.ResumePolicy
}

func main() {
	log.SetFlags(0)
	server := flag.String("server", envOr("QUIZ_SERVER", "http://localhost:8080"), "server base URL")
	stateDir := flag.String("state", envOr("QUIZ_STATE_DIR", defaultStateDir()), "directory for the saved session")
	redisAddr := flag.String("redis", os.Getenv("QUIZ_REDIS_ADDR"), "keep the saved session in redis instead of -state")
	navStop := flag.Bool("stop-at-end", false, "save & next stays on the last question instead of wrapping")
	deduct := flag.Bool("deduct-away", false, "time spent away from a saved attempt counts against it")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	kv, closeKV, err := openKV(ctx, *stateDir, *redisAddr)
	if err != nil {
		log.Fatalf("state store: %v", err)
	}
	defer closeKV()

	st, err := appstate.Load(ctx, kv)
	if err != nil {
		log.Fatalf("load session: %v", err)
	}
	notes := notify.New(time.Now)
	inbox, cancel := notes.Subscribe(32)
	defer cancel()

	a := &app{
		api:   client.New(*server, client.WithToken(st.State().AuthToken)),
		state: st,
		kv:    kv,
		notes: notes,
		inbox: inbox,
		out:   os.Stdout,
	}
	if *navStop {
		a.nav = session.NavStop
	}
	if *deduct {
		a.policy = session.ResumeDeduct
	}
	// keep the client token in step with login/logout
	st.Subscribe(func(s appstate.State) { a.api.SetToken(s.AuthToken) })

	err = a.run(ctx, flag.Arg(0), flag.Args()[1:])
	if err != nil {
		a.notes.Error(err)
	}
	a.flush()
	if err != nil {
		os.Exit(1)
	}
}

func openKV(ctx context.Context, dir, redisAddr string) (localstore.Store, func(), error) {
	if redisAddr != "" {
		rs, err := localstore.NewRedisStore(ctx, redisAddr, os.Getenv("QUIZ_REDIS_PASSWORD"), 0, "quizctl", 7*24*time.Hour)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	}
	fs, err := localstore.NewFSStore(dir)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "logout":
		if err := a.state.Dispatch(ctx, appstate.Logout{}); err != nil {
			return err
		}
		a.notes.Success("Logged out")
		return nil
	case "register":
		return a.register(ctx, args)
	case "whoami":
		return a.whoami()
	}

	if !a.state.IsLoggedIn() {
		return errors.New("not logged in; run quizctl login first")
	}
	switch cmd {
	case "subjects":
		return a.subjects(ctx)
	case "quizzes":
		return a.quizzes(ctx, args)
	case "take":
		return a.take(ctx, args)
	case "scores":
		return a.scores(ctx, args)
	case "summary":
		return a.summary(ctx)
	case "leaderboard":
		return a.leaderboard(ctx, args)
	case "export":
		return a.export(ctx, args)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// flush prints queued notifications in arrival order.
func (a *app) flush() {
	for {
		select {
		case n := <-a.inbox:
			fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Level, n.Message)
		default:
			return
		}
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: login EMAIL PASSWORD")
	}
	resp, err := a.api.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if resp.User == nil {
		return errors.New("login: server sent no user")
	}
	if err := a.state.Dispatch(ctx, appstate.SetAuthToken{Token: resp.Token}); err != nil {
		return err
	}
	if err := a.state.Dispatch(ctx, appstate.SetUser{User: resp.User}); err != nil {
		return err
	}
	a.notes.Success("Logged in as " + resp.User.Email + " (" + resp.User.Role.String() + ")")
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: register EMAIL PASSWORD [FULL NAME]")
	}
	u, err := a.api.Register(ctx, client.RegisterRequest{
		Email: args[0], Password: args[1], FullName: strings.Join(args[2:], " "),
	})
	if err != nil {
		var ae *client.APIError
		if errors.As(err, &ae) {
			for f, msg := range ae.Fields {
				a.notes.Warning(f + ": " + msg)
			}
		}
		return err
	}
	a.notes.Success("Registered " + u.Email + "; you can log in now")
	return nil
}

func (a *app) whoami() error {
	st := a.state.State()
	if st.User == nil {
		fmt.Fprintln(a.out, "not logged in")
		return nil
	}
	fmt.Fprintf(a.out, "%s (%s) id=%d\n", st.User.Email, st.User.Role, st.User.ID)
	return nil
}

func (a *app) subjects(ctx context.Context) error {
	subs, err := a.api.Subjects(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBJECT\tCHAPTER ID\tCHAPTER")
	for _, s := range subs {
		if len(s.Chapters) == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\n", s.Name)
		}
		for _, ch := range s.Chapters {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Name, ch.ID, ch.Name)
		}
	}
	return tw.Flush()
}

func (a *app) quizzes(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("quizzes", flag.ContinueOnError)
	chapter := fs.Int64("chapter", 0, "only quizzes of this chapter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var search appstate.Action = appstate.ClearSearch{}
	if q := strings.Join(fs.Args(), " "); q != "" {
		search = appstate.SetSearchQuery{Query: q}
	}
	if err := a.state.Dispatch(ctx, search); err != nil {
		log.Printf("save search: %v", err)
	}
	f := catalog.QuizFilter{ChapterID: *chapter, Q: a.state.State().SearchQuery}
	qs, err := a.api.Quizzes(ctx, f)
	if err != nil {
		return err
	}
	now := time.Now()
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDATE\tMINUTES\tQUESTIONS\tSTATUS")
	for _, q := range qs {
		status := "open"
		if q.Expired(now) {
			status = "expired"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n", q.ID, q.Name, q.Date, q.DurationMinutes, len(q.Questions), status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return a.resumeHint(ctx, f, qs)
}

// resumeHint mentions a saved attempt. The resumer needs the whole quiz list,
// since a snapshot whose quiz is missing from it gets dropped.
func (a *app) resumeHint(ctx context.Context, f catalog.QuizFilter, qs []catalog.Quiz) error {
	if f != (catalog.QuizFilter{}) {
		all, err := a.api.Quizzes(ctx, catalog.QuizFilter{})
		if err != nil {
			return err
		}
		qs = all
	}
	offer, err := session.NewResumer(a.kv, nil).Check(ctx, qs)
	if err != nil || offer == nil {
		return err
	}
	fmt.Fprintf(a.out, "\nSaved attempt for %q (%s left); run quizctl take %d to resume.\n",
		offer.Quiz.Name, session.FormatRemaining(offer.Snapshot.TimeRemaining), offer.Quiz.ID)
	return nil
}

func (a *app) scores(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scores", flag.ContinueOnError)
	quiz := fs.Int64("quiz", 0, "only scores for this quiz")
	if err := fs.Parse(args); err != nil {
		return err
	}
	scores, err := a.api.Scores(ctx, catalog.ScoreFilter{QuizID: *quiz})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUIZ\tUSER\tSCORE\tSUBMITTED")
	for _, s := range scores {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\n", s.QuizID, s.UserID, s.TotalScored, s.SubmittedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func (a *app) summary(ctx context.Context) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	if a.state.Role() == rbac.RoleAdmin {
		s, err := a.api.AdminSummary(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "SUBJECT\tTOP SCORE\tATTEMPTS")
		for i, l := range s.SubjectTopScores.Labels {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", l, s.SubjectTopScores.Values[i], s.SubjectAttempts.Values[i])
		}
		return tw.Flush()
	}
	s, err := a.api.UserSummary(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "SUBJECT\tQUESTIONS\tMY ATTEMPTS")
	for i, l := range s.SubjectQuestions.Labels {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", l, s.SubjectQuestions.Values[i], s.SubjectAttempts.Values[i])
	}
	return tw.Flush()
}

func (a *app) leaderboard(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: leaderboard QUIZ_ID")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("quiz id: %w", err)
	}
	top, err := a.api.Leaderboard(ctx, id, 10)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tUSER\tBEST")
	for _, e := range top {
		fmt.Fprintf(tw, "%d\t%d\t%d\n", e.Rank, e.UserID, e.Score)
	}
	return tw.Flush()
}

func (a *app) export(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.api.ExportUsers(ctx, a.out)
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := a.api.ExportUsers(ctx, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.notes.Success("User report written to " + args[0])
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func defaultStateDir() string {
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "quizctl")
	}
	return ".quizctl"
}

// lines feeds stdin to the attempt loop so it can also wait on the timer.
func lines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- strings.TrimSpace(sc.Text())
		}
	}()
	return ch
}
