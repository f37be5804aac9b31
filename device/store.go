package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "github.com/glebarez/go-sqlite"

	"github.com/Sushi-Mampfer/notes/entities"
	"github.com/Sushi-Mampfer/notes/pkg/eventbus"
)

var (
	// ErrNotFound is returned when a referenced recording id is absent.
	ErrNotFound = errors.New("recording not found")
	// ErrStorage marks persistence or file-system failures.
	ErrStorage = errors.New("storage failure")
	// ErrUploadInFlight is returned by Delete while a batch upload still
	// references the recording's audio file.
	ErrUploadInFlight = errors.New("recording upload in flight")
)

// Store is the device-side recordings table. Mutations are serialized
// under one mutex shared with subscription registration, which is what
// guarantees a new subscriber sees the full backlog followed by every
// later event with no gap.
type Store struct {
	mu       sync.Mutex
	db       *sql.DB
	bus      *eventbus.Bus
	inFlight map[uint32]struct{}
}

// Open opens (or creates) the device database at path and prepares the
// recordings and config tables.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open device database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping device database: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS recordings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file TEXT NOT NULL,
			name TEXT NOT NULL,
			uploaded INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			url TEXT NOT NULL DEFAULT ''
		)`,
		`INSERT OR IGNORE INTO config (id, url) VALUES (1, '')`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init device schema: %w", err)
		}
	}

	return &Store{
		db:       db,
		bus:      eventbus.New(),
		inFlight: make(map[uint32]struct{}),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a freshly captured recording and emits a "file" event
// carrying the full row. The event only fires once the write succeeded.
func (s *Store) Create(ctx context.Context, file, name string) (entities.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := entities.Recording{File: file, Name: name}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO recordings (file, name, uploaded) VALUES (?, ?, 0) RETURNING id`,
		file, name,
	).Scan(&rec.ID)
	if err != nil {
		return entities.Recording{}, errors.Join(ErrStorage, err)
	}

	s.bus.Publish(eventbus.FileEvent(rec))
	return rec, nil
}

// Rename updates a recording's title and re-emits the full updated row,
// not a delta, so out-of-order listeners converge to latest state.
func (s *Store) Rename(ctx context.Context, id uint32, name string) (entities.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.scanOne(s.db.QueryRowContext(ctx,
		`UPDATE recordings SET name = ? WHERE id = ? RETURNING id, file, name, uploaded`,
		name, id,
	))
	if err != nil {
		return entities.Recording{}, err
	}

	s.bus.Publish(eventbus.FileEvent(rec))
	return rec, nil
}

// Delete removes the backing audio file and then the row. If the file
// removal fails the row is left untouched, so there is never a row
// pointing at a missing file.
func (s *Store) Delete(ctx context.Context, id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[id]; busy {
		return ErrUploadInFlight
	}

	var file string
	err := s.db.QueryRowContext(ctx, `SELECT file FROM recordings WHERE id = ?`, id).Scan(&file)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Join(ErrStorage, err)
	}

	if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Join(ErrStorage, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id); err != nil {
		return errors.Join(ErrStorage, err)
	}

	s.bus.Publish(eventbus.DeleteEvent(id))
	return nil
}

// Get returns one recording by id.
func (s *Store) Get(ctx context.Context, id uint32) (entities.Recording, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, file, name, uploaded FROM recordings WHERE id = ?`, id))
}

// List returns all recordings newest-first.
func (s *Store) List(ctx context.Context) ([]entities.Recording, error) {
	return s.selectAll(ctx, `SELECT id, file, name, uploaded FROM recordings ORDER BY id DESC`)
}

// Subscribe registers a listener and seeds it with one "file" event per
// stored recording, in ascending creation order, before any live event.
func (s *Store) Subscribe(ctx context.Context) (*eventbus.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.selectAll(ctx, `SELECT id, file, name, uploaded FROM recordings ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	backlog := make([]eventbus.Event, 0, len(rows))
	for _, rec := range rows {
		backlog = append(backlog, eventbus.FileEvent(rec))
	}
	return s.bus.Subscribe(backlog), nil
}

// AcquireForUpload resolves every id to its current row and guards the
// backing files against deletion until ReleaseUpload. If any id is
// missing nothing is acquired.
func (s *Store) AcquireForUpload(ctx context.Context, ids []uint32) ([]entities.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]entities.Recording, 0, len(ids))
	for _, id := range ids {
		rec, err := s.scanOne(s.db.QueryRowContext(ctx,
			`SELECT id, file, name, uploaded FROM recordings WHERE id = ?`, id))
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	for _, rec := range recs {
		s.inFlight[rec.ID] = struct{}{}
	}
	return recs, nil
}

// ReleaseUpload lifts the deletion guard taken by AcquireForUpload.
func (s *Store) ReleaseUpload(ids []uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.inFlight, id)
	}
}

// MarkUploaded flips the uploaded flag for every id in one transaction.
func (s *Store) MarkUploaded(ctx context.Context, ids []uint32) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE recordings SET uploaded = 1 WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return errors.Join(ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.Join(ErrStorage, err)
	}

	for _, id := range ids {
		rec, err := s.scanOne(s.db.QueryRowContext(ctx,
			`SELECT id, file, name, uploaded FROM recordings WHERE id = ?`, id))
		if err == nil {
			s.bus.Publish(eventbus.FileEvent(rec))
		}
	}
	return nil
}

// EndpointURL returns the last-used upload endpoint, empty if never set.
func (s *Store) EndpointURL(ctx context.Context) (string, error) {
	var url string
	err := s.db.QueryRowContext(ctx, `SELECT url FROM config WHERE id = 1`).Scan(&url)
	if err != nil {
		return "", errors.Join(ErrStorage, err)
	}
	return url, nil
}

// SaveEndpointURL persists the upload endpoint so it survives restarts.
func (s *Store) SaveEndpointURL(ctx context.Context, url string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE config SET url = ? WHERE id = 1`, url); err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

func (s *Store) scanOne(row *sql.Row) (entities.Recording, error) {
	var rec entities.Recording
	var uploaded int
	err := row.Scan(&rec.ID, &rec.File, &rec.Name, &uploaded)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Recording{}, ErrNotFound
	}
	if err != nil {
		return entities.Recording{}, errors.Join(ErrStorage, err)
	}
	rec.Uploaded = uploaded != 0
	return rec, nil
}

func (s *Store) selectAll(ctx context.Context, query string) ([]entities.Recording, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	defer rows.Close()

	var recs []entities.Recording
	for rows.Next() {
		var rec entities.Recording
		var uploaded int
		if err := rows.Scan(&rec.ID, &rec.File, &rec.Name, &uploaded); err != nil {
			return nil, errors.Join(ErrStorage, err)
		}
		rec.Uploaded = uploaded != 0
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
