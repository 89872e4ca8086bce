package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const TypeScoreSubmitted = "ScoreSubmitted"

type Event struct {
	Seq       int64           `json:"seq"`
	SiteID    string          `json:"site_id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at"`
}

// Log is the append-only event_log table.
type Log struct {
	db     *sql.DB
	siteID string
}

func NewLog(db *sql.DB, siteID string) *Log {
	if siteID == "" {
		siteID = "local"
	}
	return &Log{db: db, siteID: siteID}
}

func (l *Log) Append(ctx context.Context, typ, key string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	e := Event{SiteID: l.siteID, Type: typ, Key: key, Data: data, CreatedAt: time.Now().Unix()}
	err = l.db.QueryRowContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5) RETURNING seq`,
		e.SiteID, e.Type, e.Key, string(e.Data), e.CreatedAt).Scan(&e.Seq)
	if err != nil {
		return Event{}, err
	}
	return e, nil
}

// Since returns events with seq > after, oldest first.
func (l *Log) Since(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log
		 WHERE seq > $1 ORDER BY seq LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var (
			e    Event
			data string
		)
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		out = append(out, e)
	}
	return out, rows.Err()
}
