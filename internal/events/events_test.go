package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quizmaster/internal/catalog"
	"github.com/mind-engage/quizmaster/internal/db"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	got []published
	err error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.got = append(f.got, published{exchange, key, msg})
	return f.err
}

func openLog(t *testing.T) *Log {
	t.Helper()
	conn, err := db.Open(context.Background(), db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewLog(conn, "site-a")
}

func TestRecorderAppendsAndPublishes(t *testing.T) {
	ctx := context.Background()
	l := openLog(t)
	ch := &fakeChannel{}
	r := NewRecorder(l, NewAMQPPublisher(ch, ""))

	sc := catalog.Score{ID: 3, QuizID: 1, UserID: 2, AttemptID: "att-1", TotalScored: 4,
		SubmittedAt: time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)}
	require.NoError(t, r.ScoreSubmitted(ctx, sc))

	evs, err := l.Since(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, TypeScoreSubmitted, evs[0].Type)
	require.Equal(t, "att-1", evs[0].Key)
	require.Equal(t, "site-a", evs[0].SiteID)

	var p ScorePayload
	require.NoError(t, json.Unmarshal(evs[0].Data, &p))
	require.Equal(t, 4, p.TotalScored)

	require.Len(t, ch.got, 1)
	require.Equal(t, Exchange, ch.got[0].exchange)
	require.Equal(t, RoutingScoreSubmitted, ch.got[0].key)
	require.Equal(t, "att-1", ch.got[0].msg.MessageId)
	require.JSONEq(t, string(evs[0].Data), string(ch.got[0].msg.Body))

	none, err := l.Since(ctx, evs[0].Seq, 10)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestRecorderPublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	l := openLog(t)
	r := NewRecorder(l, NewAMQPPublisher(&fakeChannel{err: errors.New("channel closed")}, ""))
	require.NoError(t, r.ScoreSubmitted(ctx, catalog.Score{QuizID: 1, UserID: 1}))

	evs, err := l.Since(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.NotEmpty(t, evs[0].Key, "a key is generated when the attempt has none")
}

func TestUnknownEventType(t *testing.T) {
	p := NewAMQPPublisher(&fakeChannel{}, "")
	require.Error(t, p.Publish(context.Background(), Event{Type: "Nope"}))
}
