// Package sqlite stores records, revision and activity logs, clients and
// events in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/lehigh-university-libraries/doiregistry/activity"
	"github.com/lehigh-university-libraries/doiregistry/doi"
	"github.com/lehigh-university-libraries/doiregistry/events"
	"github.com/lehigh-university-libraries/doiregistry/lifecycle"
	"github.com/lehigh-university-libraries/doiregistry/revision"
)

//go:embed schema.sql
var schema string

// Store is a SQLite-backed doi.Store.
type Store struct {
	db *sql.DB
}

var (
	_ doi.Store           = (*Store)(nil)
	_ doi.ClientDirectory = (*Store)(nil)
	_ events.Source       = (*Store)(nil)
	_ events.Sink         = (*Store)(nil)
)

// Open opens or creates the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path == ":memory:" {
		dsn = "file::memory:"
	}
	slog.Debug("Opening database", "path", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// One connection keeps writes serialized and in-memory databases shared.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, id string) (*doi.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM records WHERE doi_key = ?`, doi.Key(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &doi.NotFoundError{Resource: "DOI", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", id, err)
	}
	return decodeRecord(data)
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE doi_key = ?`, doi.Key(id)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *Store) Commit(ctx context.Context, c doi.Commit) error {
	if c.Record == nil {
		return errors.New("commit without a record")
	}
	rec := c.Record.Clone()
	key := doi.Key(rec.DOI)
	if c.Create {
		rec.LockVersion = 0
	} else {
		rec.LockVersion = c.ExpectedLock + 1
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", rec.DOI, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var res sql.Result
	if c.Create {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO records (doi_key, doi, client_id, state, lock_version, data, updated_at)
			VALUES (?, ?, ?, ?, 0, ?, ?)
			ON CONFLICT (doi_key) DO NOTHING`,
			key, rec.DOI, rec.ClientID, string(rec.State), string(data), formatTime(rec.Updated))
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE records
			SET doi = ?, client_id = ?, state = ?, lock_version = ?, data = ?, updated_at = ?
			WHERE doi_key = ? AND state = ? AND lock_version = ?`,
			rec.DOI, rec.ClientID, string(rec.State), rec.LockVersion, string(data), formatTime(rec.Updated),
			key, string(c.ExpectedState), c.ExpectedLock)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", rec.DOI, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.missOrConflict(ctx, tx, rec.DOI, c.Create)
	}

	if c.Snapshot != nil {
		if err := insertSnapshot(ctx, tx, key, c.Snapshot); err != nil {
			return err
		}
	}
	if c.Activity != nil {
		if err := insertActivity(ctx, tx, key, c.Activity); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, id string, expectedState lifecycle.State, a *activity.Activity) error {
	key := doi.Key(id)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE doi_key = ? AND state = ?`, key, string(expectedState))
	if err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.missOrConflict(ctx, tx, id, false)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE doi_key = ?`, key); err != nil {
		return fmt.Errorf("deleting snapshots of %s: %w", id, err)
	}
	if a != nil {
		if err := insertActivity(ctx, tx, key, a); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// missOrConflict explains why a conditional write touched no row.
func (s *Store) missOrConflict(ctx context.Context, tx *sql.Tx, id string, create bool) error {
	var state string
	err := tx.QueryRowContext(ctx, `SELECT state FROM records WHERE doi_key = ?`, doi.Key(id)).Scan(&state)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &doi.NotFoundError{Resource: "DOI", ID: id}
	case err != nil:
		return err
	case create:
		return fmt.Errorf("%w: DOI %s already exists", doi.ErrConflict, id)
	default:
		return fmt.Errorf("%w: DOI %s changed since it was read", doi.ErrConflict, id)
	}
}

func insertSnapshot(ctx context.Context, tx *sql.Tx, key string, snap *revision.Snapshot) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, doi_key, version, xml, namespace, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID.String(), key, snap.Version, snap.XML, snap.Namespace, string(snap.Metadata), formatTime(snap.Created))
	if err != nil {
		return fmt.Errorf("writing snapshot %d of %s: %w", snap.Version, snap.DOI, err)
	}
	return nil
}

func insertActivity(ctx context.Context, tx *sql.Tx, key string, a *activity.Activity) error {
	changes, err := json.Marshal(a.Changes)
	if err != nil {
		return fmt.Errorf("encoding activity changes: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO activities (id, doi_key, doi, request_id, action, changes, actor, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), key, a.DOI, a.RequestID, string(a.Action), string(changes), a.Actor, a.Version, formatTime(a.Created))
	if err != nil {
		return fmt.Errorf("writing activity of %s: %w", a.DOI, err)
	}
	return nil
}

func (s *Store) Snapshots(ctx context.Context, id string) ([]revision.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version, xml, namespace, metadata, created_at
		FROM snapshots WHERE doi_key = ? ORDER BY version`, doi.Key(id))
	if err != nil {
		return nil, fmt.Errorf("reading snapshots of %s: %w", id, err)
	}
	defer rows.Close()

	var out []revision.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snap.DOI = id
		out = append(out, snap)
	}
	return out, rows.Err()
}

func scanSnapshot(rows *sql.Rows) (revision.Snapshot, error) {
	var (
		snap     revision.Snapshot
		rawID    string
		metadata sql.NullString
		created  string
	)
	if err := rows.Scan(&rawID, &snap.Version, &snap.XML, &snap.Namespace, &metadata, &created); err != nil {
		return snap, err
	}
	var err error
	if snap.ID, err = uuid.Parse(rawID); err != nil {
		return snap, err
	}
	if metadata.Valid && metadata.String != "" {
		snap.Metadata = json.RawMessage(metadata.String)
	}
	snap.Created, err = parseTime(created)
	return snap, err
}

func (s *Store) Activities(ctx context.Context, id string) ([]activity.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doi, request_id, action, changes, actor, version, created_at
		FROM activities WHERE doi_key = ? ORDER BY rowid`, doi.Key(id))
	if err != nil {
		return nil, fmt.Errorf("reading activities of %s: %w", id, err)
	}
	defer rows.Close()

	var out []activity.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanActivity(rows *sql.Rows) (activity.Activity, error) {
	var (
		a       activity.Activity
		rawID   string
		action  string
		changes string
		created string
	)
	if err := rows.Scan(&rawID, &a.DOI, &a.RequestID, &action, &changes, &a.Actor, &a.Version, &created); err != nil {
		return a, err
	}
	var err error
	if a.ID, err = uuid.Parse(rawID); err != nil {
		return a, err
	}
	a.Action = activity.Action(action)
	if err := json.Unmarshal([]byte(changes), &a.Changes); err != nil {
		return a, fmt.Errorf("decoding activity %s: %w", rawID, err)
	}
	a.Created, err = parseTime(created)
	return a, err
}

func (s *Store) Walk(ctx context.Context, after string, limit int) ([]*doi.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM records WHERE doi_key > ? ORDER BY doi_key LIMIT ?`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("walking records: %w", err)
	}
	defer rows.Close()

	var out []*doi.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PutClient adds or replaces a client.
func (s *Store) PutClient(ctx context.Context, c doi.Client) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clients (id, data) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data`,
		strings.ToLower(c.ID), string(data))
	return err
}

func (s *Store) Client(ctx context.Context, id string) (*doi.Client, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM clients WHERE id = ?`, strings.ToLower(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &doi.NotFoundError{Resource: "client", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("reading client %s: %w", id, err)
	}
	var c doi.Client
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("decoding client %s: %w", id, err)
	}
	return &c, nil
}

// AppendEvents inserts events, ignoring ids already stored.
func (s *Store) AppendEvents(ctx context.Context, evs []events.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range evs {
		if e.ID == uuid.Nil {
			continue
		}
		e.Seq = 0
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding event %s: %w", e.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (id, subj_key, obj_key, data) VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING`,
			e.ID.String(), events.Key(e.SubjID), events.Key(e.ObjID), string(data))
		if err != nil {
			return fmt.Errorf("writing event %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) EventsFor(ctx context.Context, id string) ([]events.Event, error) {
	key := events.Key(id)
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, data FROM events WHERE subj_key = ? OR obj_key = ? ORDER BY seq`, key, key)
	if err != nil {
		return nil, fmt.Errorf("reading events of %s: %w", id, err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			seq  int64
			data string
		)
		if err := rows.Scan(&seq, &data); err != nil {
			return nil, err
		}
		var e events.Event
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("decoding event %d: %w", seq, err)
		}
		e.Seq = seq
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) HighWater(ctx context.Context, id string) (int64, error) {
	key := events.Key(id)
	var hw sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM events WHERE subj_key = ? OR obj_key = ?`, key, key).Scan(&hw)
	if err != nil {
		return 0, fmt.Errorf("reading high-water mark of %s: %w", id, err)
	}
	return hw.Int64, nil
}

func decodeRecord(data string) (*doi.Record, error) {
	var rec doi.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
