// Package postgres stores records, revision and activity logs, clients and
// events in PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lehigh-university-libraries/doiregistry/activity"
	"github.com/lehigh-university-libraries/doiregistry/doi"
	"github.com/lehigh-university-libraries/doiregistry/events"
	"github.com/lehigh-university-libraries/doiregistry/lifecycle"
	"github.com/lehigh-university-libraries/doiregistry/revision"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a PostgreSQL-backed doi.Store.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ doi.Store           = (*Store)(nil)
	_ doi.ClientDirectory = (*Store)(nil)
	_ events.Source       = (*Store)(nil)
	_ events.Sink         = (*Store)(nil)
)

// Connect opens a connection pool. Run Migrate first on a new database.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready checks the database answers.
func (s *Store) Ready(ctx context.Context) error {
	var one int
	return s.pool.QueryRow(ctx, "select 1").Scan(&one)
}

// Migrate applies the embedded migrations. With down set it reverts them
// all instead.
func Migrate(dsn string, down bool) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(dsn))
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	defer m.Close()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("Database schema is up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	slog.Info("Migrated database", "version", version, "dirty", dirty, "down", down)
	return nil
}

// migrateURL points a postgres DSN at the pgx/v5 migrate driver.
func migrateURL(dsn string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "pgx5://" + strings.TrimPrefix(dsn, scheme)
		}
	}
	return dsn
}

func (s *Store) Get(ctx context.Context, id string) (*doi.Record, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM records WHERE doi_key = $1`, doi.Key(id)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &doi.NotFoundError{Resource: "DOI", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", id, err)
	}
	return decodeRecord(data)
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM records WHERE doi_key = $1)`, doi.Key(id)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", id, err)
	}
	return exists, nil
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var affected int64
	if c.Create {
		tag, err := tx.Exec(ctx, `
			INSERT INTO records (doi_key, doi, client_id, state, lock_version, data, updated_at)
			VALUES ($1, $2, $3, $4, 0, $5, $6)
			ON CONFLICT (doi_key) DO NOTHING`,
			key, rec.DOI, rec.ClientID, string(rec.State), data, rec.Updated)
		if err != nil {
			return fmt.Errorf("writing %s: %w", rec.DOI, err)
		}
		affected = tag.RowsAffected()
	} else {
		tag, err := tx.Exec(ctx, `
			UPDATE records
			SET doi = $1, client_id = $2, state = $3, lock_version = $4, data = $5, updated_at = $6
			WHERE doi_key = $7 AND state = $8 AND lock_version = $9`,
			rec.DOI, rec.ClientID, string(rec.State), rec.LockVersion, data, rec.Updated,
			key, string(c.ExpectedState), c.ExpectedLock)
		if err != nil {
			return fmt.Errorf("writing %s: %w", rec.DOI, err)
		}
		affected = tag.RowsAffected()
	}
	if affected == 0 {
		return missOrConflict(ctx, tx, rec.DOI, c.Create)
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
	return tx.Commit(ctx)
}

func (s *Store) Delete(ctx context.Context, id string, expectedState lifecycle.State, a *activity.Activity) error {
	key := doi.Key(id)
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM records WHERE doi_key = $1 AND state = $2`, key, string(expectedState))
	if err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return missOrConflict(ctx, tx, id, false)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM snapshots WHERE doi_key = $1`, key); err != nil {
		return fmt.Errorf("deleting snapshots of %s: %w", id, err)
	}
	if a != nil {
		if err := insertActivity(ctx, tx, key, a); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func missOrConflict(ctx context.Context, tx pgx.Tx, id string, create bool) error {
	var state string
	err := tx.QueryRow(ctx, `SELECT state FROM records WHERE doi_key = $1`, doi.Key(id)).Scan(&state)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return &doi.NotFoundError{Resource: "DOI", ID: id}
	case err != nil:
		return err
	case create:
		return fmt.Errorf("%w: DOI %s already exists", doi.ErrConflict, id)
	default:
		return fmt.Errorf("%w: DOI %s changed since it was read", doi.ErrConflict, id)
	}
}

func insertSnapshot(ctx context.Context, tx pgx.Tx, key string, snap *revision.Snapshot) error {
	var metadata []byte
	if len(snap.Metadata) > 0 {
		metadata = snap.Metadata
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO snapshots (id, doi_key, doi, version, xml, namespace, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		snap.ID, key, snap.DOI, snap.Version, snap.XML, snap.Namespace, metadata, snap.Created)
	if err != nil {
		return fmt.Errorf("writing snapshot %d of %s: %w", snap.Version, snap.DOI, err)
	}
	return nil
}

func insertActivity(ctx context.Context, tx pgx.Tx, key string, a *activity.Activity) error {
	changes, err := json.Marshal(a.Changes)
	if err != nil {
		return fmt.Errorf("encoding activity changes: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO activities (id, doi_key, doi, request_id, action, changes, actor, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, key, a.DOI, a.RequestID, string(a.Action), changes, a.Actor, a.Version, a.Created)
	if err != nil {
		return fmt.Errorf("writing activity of %s: %w", a.DOI, err)
	}
	return nil
}

func (s *Store) Snapshots(ctx context.Context, id string) ([]revision.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, doi, version, xml, namespace, metadata, created_at
		FROM snapshots WHERE doi_key = $1 ORDER BY version`, doi.Key(id))
	if err != nil {
		return nil, fmt.Errorf("reading snapshots of %s: %w", id, err)
	}
	defer rows.Close()

	var out []revision.Snapshot
	for rows.Next() {
		var (
			snap     revision.Snapshot
			metadata []byte
		)
		if err := rows.Scan(&snap.ID, &snap.DOI, &snap.Version, &snap.XML, &snap.Namespace, &metadata, &snap.Created); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			snap.Metadata = json.RawMessage(metadata)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) Activities(ctx context.Context, id string) ([]activity.Activity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, doi, request_id, action, changes, actor, version, created_at
		FROM activities WHERE doi_key = $1 ORDER BY seq`, doi.Key(id))
	if err != nil {
		return nil, fmt.Errorf("reading activities of %s: %w", id, err)
	}
	defer rows.Close()

	var out []activity.Activity
	for rows.Next() {
		var (
			a       activity.Activity
			action  string
			changes []byte
		)
		if err := rows.Scan(&a.ID, &a.DOI, &a.RequestID, &action, &changes, &a.Actor, &a.Version, &a.Created); err != nil {
			return nil, err
		}
		a.Action = activity.Action(action)
		if err := json.Unmarshal(changes, &a.Changes); err != nil {
			return nil, fmt.Errorf("decoding activity %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Walk(ctx context.Context, after string, limit int) ([]*doi.Record, error) {
	query := `SELECT data FROM records WHERE doi_key > $1 ORDER BY doi_key`
	args := []any{after}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("walking records: %w", err)
	}
	defer rows.Close()

	var out []*doi.Record
	for rows.Next() {
		var data []byte
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO clients (id, data) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		strings.ToLower(c.ID), data)
	return err
}

func (s *Store) Client(ctx context.Context, id string) (*doi.Client, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM clients WHERE id = $1`, strings.ToLower(id)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &doi.NotFoundError{Resource: "client", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("reading client %s: %w", id, err)
	}
	var c doi.Client
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding client %s: %w", id, err)
	}
	return &c, nil
}

// AppendEvents inserts events with ON CONFLICT DO NOTHING so redelivered
// events are ignored.
func (s *Store) AppendEvents(ctx context.Context, evs []events.Event) error {
	if len(evs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range evs {
		if e.ID == uuid.Nil {
			continue
		}
		e.Seq = 0
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding event %s: %w", e.ID, err)
		}
		batch.Queue(`
			INSERT INTO events (id, subj_key, obj_key, data) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING`,
			e.ID, events.Key(e.SubjID), events.Key(e.ObjID), data)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("writing events: %w", err)
	}
	return nil
}

func (s *Store) EventsFor(ctx context.Context, id string) ([]events.Event, error) {
	key := events.Key(id)
	rows, err := s.pool.Query(ctx, `
		SELECT seq, data FROM events WHERE subj_key = $1 OR obj_key = $1 ORDER BY seq`, key)
	if err != nil {
		return nil, fmt.Errorf("reading events of %s: %w", id, err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			seq  int64
			data []byte
		)
		if err := rows.Scan(&seq, &data); err != nil {
			return nil, err
		}
		var e events.Event
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding event %d: %w", seq, err)
		}
		e.Seq = seq
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) HighWater(ctx context.Context, id string) (int64, error) {
	key := events.Key(id)
	var hw int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM events WHERE subj_key = $1 OR obj_key = $1`, key).Scan(&hw)
	if err != nil {
		return 0, fmt.Errorf("reading high-water mark of %s: %w", id, err)
	}
	return hw, nil
}

func decodeRecord(data []byte) (*doi.Record, error) {
	var rec doi.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return &rec, nil
}
