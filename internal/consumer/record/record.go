// Package record stores streamed messages in a SQLite database. Writes go through a
// single goroutine that batches whatever is pending into one transaction.
package record

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akyaiy/cortexlink/internal/cortex/stream"
	_ "modernc.org/sqlite"
)

const (
	DefaultBuffer = 1024
	maxBatch      = 128
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	instance    TEXT    NOT NULL,
	session     TEXT    NOT NULL DEFAULT '',
	stream      TEXT    NOT NULL DEFAULT '',
	received_at INTEGER NOT NULL,
	payload     TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_stream_time ON messages (stream, received_at);
`

// Row is one recorded message.
type Row struct {
	ID         int64
	Instance   string
	Session    string
	Stream     string
	ReceivedAt time.Time
	Payload    string
}

// Recorder is a stream.Consumer writing every message to the database.
type Recorder struct {
	db       *sql.DB
	instance string
	log      *slog.Logger

	mu        sync.RWMutex
	closed    bool
	writeChan chan stream.Message
	done      chan struct{}

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	// OnDrop, if set, is called for every message dropped because the writer fell behind.
	OnDrop func(msg stream.Message)
}

// Open creates or opens the database at path. instance labels every row.
func Open(path, instance string, log *slog.Logger) (*Recorder, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("record: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("record: create schema: %w", err)
	}

	r := &Recorder{
		db:        db,
		instance:  instance,
		log:       log.With(slog.String("db", path)),
		writeChan: make(chan stream.Message, DefaultBuffer),
		done:      make(chan struct{}),
	}
	go r.processWrites()
	return r, nil
}

// Consume queues msg for writing. When the writer falls behind the message is dropped.
func (r *Recorder) Consume(msg stream.Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.writeChan <- msg:
	default:
		if r.dropped.Add(1) == 1 {
			r.log.Warn("recorder is falling behind, dropping messages")
		}
		if r.OnDrop != nil {
			r.OnDrop(msg)
		}
	}
}

func (r *Recorder) processWrites() {
	defer close(r.done)
	batch := make([]stream.Message, 0, maxBatch)
	for msg := range r.writeChan {
		batch = append(batch[:0], msg)
	drain:
		for len(batch) < maxBatch {
			select {
			case m, ok := <-r.writeChan:
				if !ok {
					break drain
				}
				batch = append(batch, m)
			default:
				break drain
			}
		}
		if err := r.write(batch); err != nil {
			r.failed.Add(uint64(len(batch)))
			r.log.Error("write failed", slog.Int("messages", len(batch)), slog.String("err", err.Error()))
			continue
		}
		r.written.Add(uint64(len(batch)))
	}
}

func (r *Recorder) write(batch []stream.Message) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO messages (instance, session, stream, received_at, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, msg := range batch {
		at := msg.ReceivedAt
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.Exec(r.instance, msg.SessionID(), msg.Stream(), at.UnixMilli(), string(msg.Raw)); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Written, Dropped and Failed count messages by outcome.
func (r *Recorder) Written() uint64 { return r.written.Load() }
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }
func (r *Recorder) Failed() uint64  { return r.failed.Load() }

// Recent returns up to limit rows, newest first. An empty streamName matches all streams.
func (r *Recorder) Recent(ctx context.Context, streamName string, limit int) ([]Row, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, instance, session, stream, received_at, payload FROM messages
		WHERE ? = '' OR stream = ?
		ORDER BY id DESC LIMIT ?`, streamName, streamName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		var ms int64
		if err := rows.Scan(&row.ID, &row.Instance, &row.Session, &row.Stream, &ms, &row.Payload); err != nil {
			return nil, err
		}
		row.ReceivedAt = time.UnixMilli(ms)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close flushes queued messages and closes the database. It is safe to call twice.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.writeChan)
	r.mu.Unlock()

	<-r.done
	r.log.Debug("recorder closed", slog.Uint64("written", r.written.Load()), slog.Uint64("dropped", r.dropped.Load()))
	return r.db.Close()
}
